package main

import (
	"fmt"

	"github.com/spf13/cobra"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
)

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check a definition file against the attribute catalog",
		Long: `Validate parses a JSON or YAML policy definition and checks that every
attribute is known and that every constraint is legal for its attribute.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDefinition(args[0])
			if err != nil {
				return err
			}
			if err := d.Validate(corepolicy.DefaultCatalog()); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d attributes ok\n", args[0], len(d))
			return nil
		},
	}
}
