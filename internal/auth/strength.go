// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth

import (
	"strings"

	"github.com/nbutton23/zxcvbn-go"
)

// Strength scores range from 0 (trivially guessable) to 4.
const (
	MinStrengthScore     = 0
	MaxStrengthScore     = 4
	DefaultStrengthScore = 3
)

// StrengthEstimator scores how hard a password is to guess. userInputs are
// strings an attacker would try first, such as the username.
type StrengthEstimator interface {
	Score(password string, userInputs ...string) int
}

// ZxcvbnEstimator scores passwords with zxcvbn.
type ZxcvbnEstimator struct{}

// NewZxcvbnEstimator creates a ZxcvbnEstimator.
func NewZxcvbnEstimator() *ZxcvbnEstimator {
	return &ZxcvbnEstimator{}
}

// Score returns the zxcvbn score, clamped to 0..4.
func (ZxcvbnEstimator) Score(password string, userInputs ...string) int {
	inputs := make([]string, 0, len(userInputs))
	for _, in := range userInputs {
		if in = strings.TrimSpace(in); in != "" {
			inputs = append(inputs, strings.ToLower(in))
		}
	}
	score := zxcvbn.PasswordStrength(password, inputs).Score
	return min(max(score, MinStrengthScore), MaxStrengthScore)
}
