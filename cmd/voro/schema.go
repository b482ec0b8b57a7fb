// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Voro Contributors

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/voro/voro/internal/httpapi"
)

// NewSchemaCmd creates the schema subcommand.
func NewSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema [name]",
		Short: "Print the JSON Schemas of the request bodies",
		Long: "Print the JSON Schema of one request body, or of all of them.\nNames: " +
			strings.Join(httpapi.SchemaNames(), ", "),
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := httpapi.SchemaNames()
			if len(args) == 1 {
				if !slices.Contains(names, args[0]) {
					return oops.Code("SCHEMA_UNKNOWN").
						With("schema", args[0]).
						Errorf("unknown schema %q (want one of %s)", args[0], strings.Join(names, ", "))
				}
				names = args
			}
			for _, name := range names {
				data, err := httpapi.GenerateSchema(name)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), string(data)); err != nil {
					return oops.Code("SCHEMA_WRITE_FAILED").Wrap(err)
				}
			}
			return nil
		},
	}
}
