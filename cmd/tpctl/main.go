// Command tpctl creates and manages Traffic Portal short links from the terminal.
package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/trafficportal/linkshortener/config"
)

type rootOptions struct {
	configPath string
	verbose    bool
	fake       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	rootCmd, closeApp := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if closeErr := closeApp(); closeErr != nil {
		log.Error().Err(closeErr).Msg("Failed to release resources")
	}
	if err != nil {
		os.Exit(1)
	}
}

// newRootCmd builds the command tree. The returned func releases whatever the
// executed command opened.
func newRootCmd() (*cobra.Command, func() error) {
	opts := &rootOptions{}
	var current *app

	rootCmd := &cobra.Command{
		Use:          "tpctl",
		Short:        "Create and manage Traffic Portal short links",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			setupLogging(cmd.ErrOrStderr(), cfg.Level(), opts.verbose)

			current, err = newApp(cmd.Context(), cfg, opts.fake)
			return err
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "YAML config file (or set TP_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&opts.fake, "fake", false, "Talk to in-process fake APIs instead of the configured services")

	appFn := func() *app { return current }
	rootCmd.AddCommand(
		newShortenCmd(appFn),
		newShortCodeCmd(appFn),
		newScreenshotCmd(appFn),
		newSearchCmd(appFn),
		newUpdateCmd(appFn),
		newLookupCmd(appFn),
		newCacheCmd(appFn),
	)
	closeApp := func() error {
		if current == nil {
			return nil
		}
		return current.close()
	}
	return rootCmd, closeApp
}

func setupLogging(w io.Writer, level zerolog.Level, verbose bool) {
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
