// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/voro/voro/internal/config"
	"github.com/voro/voro/internal/xdg"
)

// Global flags available to all subcommands.
var configFile string

// NewRootCmd creates the root command for the voro CLI.
func NewRootCmd() *cobra.Command {
	return newRootCmd(nil)
}

func newRootCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "voro",
		Short: "voro - account and session token service",
		Long: `voro registers accounts, issues encrypted session tokens bound to
the requesting client, and revokes them on logout or password change.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&configFile, "config", "", "config file path")
	config.BindFlags(cmd.PersistentFlags())

	cmd.AddCommand(newServeCmd(deps))
	cmd.AddCommand(newMigrateCmd(deps))
	cmd.AddCommand(newRevocationsCmd(deps))
	cmd.AddCommand(NewConfigCmd())
	cmd.AddCommand(NewSchemaCmd())

	return cmd
}

// loadConfig reads the layered configuration for cmd. Without --config,
// $XDG_CONFIG_HOME/voro/config.yaml is used when present. Flags inherited
// from the root are applied last.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configFile
	if path == "" {
		var err error
		if path, err = xdg.DefaultConfigFile(); err != nil {
			return nil, err
		}
	}
	return config.Load(config.LoadOptions{
		Path:  path,
		Flags: cmd.Flags(),
	})
}
