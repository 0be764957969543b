package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/initialization"
	"github.com/NamLeeeWatatek/omni-ai-source-sub001/internal/version"
)

func NewStartCommand(opts *rootOptions) *cobra.Command {
	var address string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the HTTP API",
		Long:  `Start the engine's HTTP API. Runs started over HTTP execute in the background and can be polled by id.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := opts.loadConfig()
			if err != nil {
				return err
			}

			if address != "" {
				config.Server.Address = address
			}

			return runStart(config)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Listen address, overrides server.address")

	return cmd
}

func runStart(config *initialization.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().Str("version", version.GetVersion()).Msg("Starting flow engine")

	container, err := initialization.NewContainer(ctx, config)
	if err != nil {
		return err
	}

	log.Info().Str("address", config.Server.Address).Msg("HTTP server listening")

	listenErr := container.App.Listen(config.Server.Address, fiber.ListenConfig{
		GracefulContext:       ctx,
		DisableStartupMessage: true,
	})
	if listenErr != nil {
		log.Error().Err(listenErr).Msg("HTTP server failed")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := container.Close(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Failed to shut down cleanly")
	}

	log.Info().Msg("Flow engine stopped")

	return listenErr
}
