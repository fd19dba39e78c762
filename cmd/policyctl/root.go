package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/upb/cluster-policy-builder/internal/observability"
	corepolicy "github.com/upb/cluster-policy-builder/internal/policy"
	catalogsvc "github.com/upb/cluster-policy-builder/services/catalog"
	"github.com/upb/cluster-policy-builder/services/workspace"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	host    string
	token   string
	verbose bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "policyctl",
		Short: "Build and submit cluster policies",
		Long: `policyctl drives the cluster policy constraint model without the web editor.

It lists the supported attributes, builds single constraints, validates
definition files and creates or updates policies in a workspace.

Workspace commands read DATABRICKS_HOST and DATABRICKS_TOKEN unless --host
and --token are given.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flags.host, "host", os.Getenv("DATABRICKS_HOST"), "workspace host")
	root.PersistentFlags().StringVar(&flags.token, "token", os.Getenv("DATABRICKS_TOKEN"), "workspace access token")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newAttributesCmd(),
		newBuildCmd(flags),
		newValidateCmd(),
		newSubmitCmd(flags),
	)
	return root
}

func (f *globalFlags) logger() *zap.Logger {
	if !f.verbose {
		return zap.NewNop()
	}
	logger, err := observability.NewLogger(observability.LoggerConfig{Level: "debug", Format: "console"})
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// remote returns the workspace client and a catalog over it. It fails when
// no host is configured.
func (f *globalFlags) remote() (*workspace.Client, *catalogsvc.Service, error) {
	if f.host == "" {
		return nil, nil, fmt.Errorf("workspace host is required: set --host or DATABRICKS_HOST")
	}
	logger := f.logger()
	client := workspace.NewClient(workspace.Config{Host: f.host, Token: f.token}, nil, logger)
	catalog := catalogsvc.NewService(client, client, catalogsvc.Config{}, nil, logger)
	return client, catalog, nil
}

// writeDefinition prints d as indented JSON or YAML
func writeDefinition(w io.Writer, d corepolicy.Definition, format string) error {
	data, err := d.ToJSON()
	if err != nil {
		return err
	}
	switch format {
	case "", "json":
		var buf bytes.Buffer
		if err := json.Indent(&buf, data, "", "  "); err != nil {
			return err
		}
		buf.WriteByte('\n')
		_, err := buf.WriteTo(w)
		return err
	case "yaml":
		// JSON is a subset of YAML
		var out map[string]interface{}
		if err := yaml.Unmarshal(data, &out); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(out)
	default:
		return fmt.Errorf("unknown output format %q: use json or yaml", format)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
