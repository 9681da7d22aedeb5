package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/gogpu/vizctx"
	"github.com/gogpu/vizctx/catalog"
)

func newDesignsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "designs",
		Short: "List the catalog designs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			reg := catalog.NewRegistry()
			if cfg.Catalog.Overrides != "" {
				ov, err := catalog.LoadOverrides(cfg.Catalog.Overrides)
				if err != nil {
					return err
				}
				if err := reg.Apply(ov); err != nil {
					return err
				}
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tANIMATED")
			for _, id := range reg.Designs() {
				d, _ := reg.Lookup(id)
				fmt.Fprintf(tw, "%s\t%s\t%t\n", id, d.DisplayName, d.Animation != nil)
			}
			return tw.Flush()
		},
	}
}

func newProbeCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Print the capabilities of the selected backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := g.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			app, err := vizctx.NewApp(vizctx.WithConfig(cfg))
			if err != nil {
				return err
			}
			defer app.Close()

			caps := app.Capabilities()
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "backend:      %s\n", app.Backend().Name())
			fmt.Fprintf(out, "supported:    %t\n", caps.Supported)
			fmt.Fprintf(out, "version:      %d\n", caps.Version)
			fmt.Fprintf(out, "renderer:     %s\n", caps.RendererName)
			fmt.Fprintf(out, "max texture:  %d\n", caps.MaxTextureSize)
			fmt.Fprintf(out, "max target:   %d\n", caps.MaxRenderbufferSize)
			fmt.Fprintf(out, "tier:         %s\n", caps.Tier)
			fmt.Fprintf(out, "pool:         %d contexts\n", app.Pool().Cap())
			return nil
		},
	}
}
