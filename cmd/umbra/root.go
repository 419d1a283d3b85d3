package main

import (
	"fmt"
	"os"

	"github.com/gekko3d/umbra"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cli carries what every subcommand shares once the root has run.
type cli struct {
	cfgFile string
	debug   bool
	json    bool

	loader *umbra.ConfigLoader
	cfg    *umbra.Config
	log    *umbra.DefaultLogger
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "umbra",
		Short: "Shadow map scheduling and deferred light binning",
		Long: `umbra renders dynamic light shadow maps under a per-frame time budget
and accumulates lights into a light buffer.

Configuration is read from --config, ./umbra.yaml or $HOME/.umbra/umbra.yaml.
Any key can be overridden with an UMBRA_ environment variable, e.g.
UMBRA_SHADOW_RENDER_BUDGET=4ms.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "config file (default ./umbra.yaml)")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "enable debug logging")
	root.PersistentFlags().BoolVar(&c.json, "log-json", false, "log JSON lines instead of console output")

	root.AddCommand(newSimulateCmd(c))
	root.AddCommand(newViewCmd(c))
	root.AddCommand(newNoiseCmd(c))
	root.AddCommand(newConfigCmd(c))
	return root
}

func (c *cli) init(cmd *cobra.Command) error {
	c.loader = umbra.NewConfigLoader(c.cfgFile, nil)
	v := c.loader.Viper()
	if err := v.BindPFlag("log.debug", cmd.Root().PersistentFlags().Lookup("debug")); err != nil {
		return err
	}
	if err := v.BindPFlag("log.json", cmd.Root().PersistentFlags().Lookup("log-json")); err != nil {
		return err
	}
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if keys := f.Annotations[viperKey]; len(keys) > 0 && bindErr == nil {
			bindErr = v.BindPFlag(keys[0], f)
		}
	})
	if bindErr != nil {
		return bindErr
	}

	cfg, err := c.loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	c.cfg = cfg
	if cfg.Log.JSON {
		c.log = umbra.NewJSONLogger(os.Stderr, "umbra", cfg.Log.Debug)
	} else {
		c.log = umbra.NewDefaultLogger("umbra", cfg.Log.Debug)
	}
	if used := v.ConfigFileUsed(); used != "" {
		c.log.Debugf("configuration loaded from %s", used)
	}
	return nil
}
