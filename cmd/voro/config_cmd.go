// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package main

import (
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the config subcommand.
func NewConfigCmd() *cobra.Command {
	var validate bool

	cmd := &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Long: `Print the configuration after defaults, file, environment and flags
are applied. Secrets are redacted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.WriteYAML(cmd.OutOrStdout()); err != nil {
				return err
			}
			if validate {
				return cfg.Validate()
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&validate, "validate", false, "fail if the configuration is invalid")

	return cmd
}
