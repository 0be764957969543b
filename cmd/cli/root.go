package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/initialization"
)

type rootOptions struct {
	configFile string
	debug      bool
	logFormat  string
}

func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "flowengine",
		Short: "Flow execution engine",
		Long: `flowengine executes node graphs: it walks a flow from its start node,
dispatches every node to its plugin and records a trace of each run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "Path to a config file (default: flowengine.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "Log format: console or json")

	rootCmd.AddCommand(NewStartCommand(opts))
	rootCmd.AddCommand(NewRunCommand(opts))
	rootCmd.AddCommand(NewValidateCommand())
	rootCmd.AddCommand(NewVersionCommand())

	return rootCmd
}

// loadConfig reads the config and applies its logging settings. Flags win
// over the config file.
func (o *rootOptions) loadConfig() (*initialization.Config, error) {
	config, err := initialization.LoadConfig(o.configFile)
	if err != nil {
		return nil, err
	}

	if o.logFormat != "" {
		config.Log.Format = o.logFormat
	}

	if o.debug {
		config.Log.Level = zerolog.LevelDebugValue
	}

	configureLogging(config.Log)

	return config, nil
}

func configureLogging(config initialization.LogConfig) {
	level, err := zerolog.ParseLevel(strings.ToLower(config.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(config.Format, "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
