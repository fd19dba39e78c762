package main

import (
	"fmt"

	"github.com/spf13/cobra"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	"github.com/upb/cluster-policy-builder/services"
	"github.com/upb/cluster-policy-builder/services/policy"
)

type submitFlags struct {
	name               string
	description        string
	familyID           string
	policyID           string
	maxClustersPerUser int
}

func newSubmitCmd(global *globalFlags) *cobra.Command {
	flags := &submitFlags{}

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Create or update a policy from a definition file",
		Long: `Submit sends a definition file to the workspace. Without --policy-id a new
policy is created; with it the stored policy is replaced.

With --family-id the file holds the overrides of that policy family. An
update keeps the family binding of the stored policy, so --family-id and
--policy-id cannot be combined.

The file is checked against the attribute catalog before anything is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := readDefinition(args[0])
			if err != nil {
				return err
			}
			if err := d.Validate(corepolicy.DefaultCatalog()); err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}

			client, catalog, err := global.remote()
			if err != nil {
				return err
			}

			coordinator := policy.NewCoordinator(client, catalog, corepolicy.DefaultCatalog(), nil, global.logger())

			// An update keeps the stored family binding and companion fields
			editor := corepolicy.NewEditor()
			if flags.familyID != "" {
				editor = corepolicy.NewFamilyEditor(flags.familyID, nil)
			}
			if flags.policyID != "" {
				if editor, err = coordinator.Load(cmd.Context(), flags.policyID); err != nil {
					return err
				}
			}
			if editor.Draft.FamilyBased() {
				editor.Draft.Overrides = d
			} else {
				editor.Draft.Definition = d
			}

			form := policy.Form{Name: flags.name, Description: flags.description}
			if cmd.Flags().Changed("max-clusters-per-user") {
				n := flags.maxClustersPerUser
				form.MaxClustersPerUser = &n
			}

			outcome, err := coordinator.Submit(cmd.Context(), "policyctl", editor, form)
			if err != nil {
				if details := services.GetErrorDetails(err); len(details) > 0 {
					return fmt.Errorf("%w %v", err, details)
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), outcome.Notification)
		},
	}

	f := cmd.Flags()
	f.StringVar(&flags.name, "name", "", "policy name (required)")
	f.StringVar(&flags.description, "description", "", "policy description")
	f.StringVar(&flags.familyID, "family-id", "", "policy family the file overrides")
	f.StringVar(&flags.policyID, "policy-id", "", "update this policy instead of creating one")
	f.IntVar(&flags.maxClustersPerUser, "max-clusters-per-user", 0, "cluster limit per user (0 for none)")
	_ = cmd.MarkFlagRequired("name")
	cmd.MarkFlagsMutuallyExclusive("family-id", "policy-id")
	return cmd
}
