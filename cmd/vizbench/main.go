// Command vizbench mounts viewers headlessly and reports how the context pool
// and the adaptive quality controller behave.
//
// Usage:
//
//	vizbench run --design dual-chamber --viewers 4 --frames 600 --fps 20
//	vizbench run --snapshot frame.png --overlay
//	vizbench designs
//	vizbench probe
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/vizctx"
	"github.com/gogpu/vizctx/config"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	configPath string
	logLevel   string
	backend    string
}

func newRootCmd() *cobra.Command {
	g := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "vizbench",
		Short:         "Headless bench for vizctx viewers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "YAML configuration file")
	cmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&g.backend, "backend", "", "graphics backend (wgpu, software)")

	cmd.AddCommand(newRunCmd(g))
	cmd.AddCommand(newDesignsCmd(g))
	cmd.AddCommand(newProbeCmd(g))
	return cmd
}

// load reads the configuration, applies the persistent flags and installs
// the logger.
func (g *globalOptions) load(logOut io.Writer) (*config.Config, error) {
	cfg := config.Default()
	if g.configPath != "" {
		var err error
		if cfg, err = config.Load(g.configPath); err != nil {
			return nil, err
		}
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.backend != "" {
		cfg.Backend.Name = g.backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	vizctx.SetLogger(cfg.Log.NewLogger(logOut))
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "vizbench:", err)
		os.Exit(1)
	}
}
