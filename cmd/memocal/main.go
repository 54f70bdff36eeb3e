package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"memocal/internal/config"
	"memocal/internal/extract"
	"memocal/internal/grammar"
	appLog "memocal/internal/log"
)

const version = "0.1.0-dev"

var (
	cfgFile string
	conf    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "memocal",
	Short: "MemoCal - turn dates in free-form notes into calendar events",
	Long: `MemoCal scans notes for date and time expressions and bare numbers,
surfaces them as event candidates, and books accepted candidates into
Google Calendar or calendar files for device calendars.`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// No config needed.
	PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "memocal", version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "memocal.yaml", "path to config file (created with defaults when missing)")
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("memocal failed", err)
		os.Exit(1)
	}
}

func loadConfig(*cobra.Command, []string) error {
	c, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgFile, err)
	}
	conf = c
	appLog.SetLevel(appLog.ParseLevel(conf.LogLevel))
	return nil
}

// location resolves the configured timezone, logging and falling back to
// time.Local when it is unknown.
func location() *time.Location {
	loc, err := conf.Location()
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", conf.Timezone)
	}
	return loc
}

func newEngine(loc *time.Location) (*extract.Engine, error) {
	g, err := grammar.New(conf.Locale)
	if err != nil {
		return nil, err
	}
	return extract.NewEngine(g, nil, extract.Options{
		Location:        loc,
		DefaultDuration: conf.DefaultDuration(),
		DefaultTitle:    conf.DefaultTitle,
	}), nil
}
