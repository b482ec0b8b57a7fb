// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/voro/voro/internal/auth"
)

func TestZxcvbnEstimator_Score(t *testing.T) {
	est := auth.NewZxcvbnEstimator()

	assert.Equal(t, 0, est.Score("password"))
	assert.Less(t, est.Score("qwerty123"), auth.DefaultStrengthScore)
	assert.Equal(t, auth.MaxStrengthScore, est.Score("vT9#qLm2$wXz8!pR"))
}

func TestZxcvbnEstimator_UserInputsLowerScore(t *testing.T) {
	est := auth.NewZxcvbnEstimator()

	without := est.Score("zorbathegreek")
	with := est.Score("zorbathegreek", "ZorbaTheGreek", "  ")
	assert.LessOrEqual(t, with, without)
	assert.Less(t, with, auth.DefaultStrengthScore)
}

func TestZxcvbnEstimator_ScoreInRange(t *testing.T) {
	est := auth.NewZxcvbnEstimator()
	for _, pw := range []string{"a", "aaaaaaaaaaaaaaaaaaaaaaaa", "Str0ng!Pass99", "correct horse battery staple"} {
		score := est.Score(pw)
		assert.GreaterOrEqual(t, score, auth.MinStrengthScore, pw)
		assert.LessOrEqual(t, score, auth.MaxStrengthScore, pw)
	}
}
