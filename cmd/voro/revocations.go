// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package main

import (
	"github.com/spf13/cobra"

	"github.com/voro/voro/internal/auth"
)

// newRevocationsCmd creates the revocations subcommand.
func newRevocationsCmd(deps *Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "revocations",
		Short: "Manage revoked tokens",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete revocations for tokens that have expired",
		Long: `Delete revocation entries whose token has passed its expiry. An
expired token is rejected on its own, so its entry is no longer needed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPrune(cmd, deps)
		},
	})

	return cmd
}

func runPrune(cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := setupLogging(cfg.Log)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	be, err := openBackend(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer be.close()

	n, err := auth.NewPruner(be.revocations, 0, logger).PruneOnce(ctx)
	if err != nil {
		return err
	}
	cmd.Printf("Pruned %d expired revocations\n", n)
	return nil
}
