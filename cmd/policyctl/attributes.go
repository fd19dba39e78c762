package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
)

type attributeView struct {
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description" yaml:"description"`
	Domain      corepolicy.Domain `json:"domain" yaml:"domain"`
	Modes       []corepolicy.Mode `json:"modes" yaml:"modes"`
	Options     string            `json:"options,omitempty" yaml:"options,omitempty"`
}

func newAttributesCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "attributes",
		Short: "List the supported cluster attributes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			profiles := corepolicy.DefaultCatalog().Profiles()
			views := make([]attributeView, len(profiles))
			for i, p := range profiles {
				views[i] = attributeView{
					Name:        p.Name,
					Description: p.Description,
					Domain:      p.Domain,
					Modes:       p.Modes(),
					Options:     string(p.Options),
				}
			}

			switch output {
			case "json":
				return writeJSON(cmd.OutOrStdout(), views)
			case "", "text":
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "NAME\tDOMAIN\tMODES")
				for _, v := range views {
					modes := make([]string, len(v.Modes))
					for i, m := range v.Modes {
						modes[i] = string(m)
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", v.Name, v.Domain, strings.Join(modes, ","))
				}
				return tw.Flush()
			default:
				return fmt.Errorf("unknown output format %q: use text or json", output)
			}
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json")
	return cmd
}
