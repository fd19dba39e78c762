package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
)

type buildFlags struct {
	mode          string
	discriminator string
	value         string
	pattern       string
	min           string
	max           string
	values        []string
	defaultValue  string
	optional      bool
	hidden        bool
	remote        bool
	output        string
}

func newBuildCmd(global *globalFlags) *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build <attribute>",
		Short: "Build one constraint and print it as a definition entry",
		Long: `Build validates one constraint the same way the editor does and prints it
as a single entry policy definition.

Examples:
  policyctl build autoscale.max_workers --mode range --min 1 --max 10
  policyctl build custom_tags.* --discriminator team --mode fixed --value data
  policyctl build aws_attributes.availability --mode allowlist --values SPOT,ON_DEMAND --default SPOT

Attributes whose values come from the workspace (node types, zones, pools)
need --remote.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.request(args[0])
			if err != nil {
				return err
			}

			var options corepolicy.OptionSource
			if flags.remote {
				_, catalog, err := global.remote()
				if err != nil {
					return err
				}
				options = catalog
			}

			builder := corepolicy.NewBuilder(corepolicy.DefaultCatalog(), options)
			name, c, err := builder.Build(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeDefinition(cmd.OutOrStdout(), corepolicy.Definition{name: c}, flags.output)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&flags.mode, "mode", "m", string(corepolicy.ModeFixed), "constraint type: fixed, forbidden, regex, range, allowlist, blocklist, unlimited")
	f.StringVar(&flags.discriminator, "discriminator", "", "key or index substituted for * in wildcard attributes")
	f.StringVar(&flags.value, "value", "", "value for fixed and forbidden")
	f.StringVar(&flags.pattern, "pattern", "", "regular expression for regex")
	f.StringVar(&flags.min, "min", "", "lower bound for range")
	f.StringVar(&flags.max, "max", "", "upper bound for range")
	f.StringSliceVar(&flags.values, "values", nil, "comma separated values for allowlist and blocklist")
	f.StringVar(&flags.defaultValue, "default", "", "default value")
	f.BoolVar(&flags.optional, "optional", false, "make the attribute optional")
	f.BoolVar(&flags.hidden, "hidden", false, "hide the attribute from the cluster UI")
	f.BoolVar(&flags.remote, "remote", false, "check values against the workspace catalog")
	f.StringVarP(&flags.output, "output", "o", "json", "output format: json, yaml")
	return cmd
}

// request turns the flags into a builder request. Unset flags stay absent.
func (f *buildFlags) request(attribute string) (corepolicy.Request, error) {
	mode, err := corepolicy.ParseMode(f.mode)
	if err != nil {
		return corepolicy.Request{}, err
	}

	req := corepolicy.Request{
		Attribute:     attribute,
		Discriminator: f.discriminator,
		Mode:          mode,
		Payload:       corepolicy.Payload{Pattern: f.pattern},
		Modifiers:     corepolicy.Modifiers{IsOptional: f.optional, Hidden: f.hidden},
	}
	if f.value != "" {
		v := corepolicy.RawInput(f.value)
		req.Payload.Value = &v
	}
	if req.Payload.MinValue, err = parseBound("min", f.min); err != nil {
		return corepolicy.Request{}, err
	}
	if req.Payload.MaxValue, err = parseBound("max", f.max); err != nil {
		return corepolicy.Request{}, err
	}
	for _, v := range f.values {
		req.Payload.Values = append(req.Payload.Values, corepolicy.RawInput(v))
	}
	if f.defaultValue != "" {
		v := corepolicy.RawInput(f.defaultValue)
		req.Modifiers.DefaultValue = &v
	}
	return req, nil
}

func parseBound(flag, s string) (*float64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("--%s: %q is not a number", flag, s)
	}
	return &v, nil
}
