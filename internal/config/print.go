// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package config

import (
	"io"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// WriteYAML writes the redacted configuration to w.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c.Redacted()); err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	return nil
}
