package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"ostplayer/internal/app"
	"ostplayer/internal/config"
	"ostplayer/internal/media"
	"ostplayer/internal/server"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
)

type ServeParams struct {
	Config string `short:"c" help:"Path to the TOML configuration file." default:"./config.toml"`
	Port   string `short:"p" help:"Port to listen on (overrides the configuration)." optional:"true"`
}

func ServeCmd() *cobra.Command {
	return boa.CmdT[ServeParams]{
		Use:         "serve",
		Short:       "Run the player headless behind the HTTP remote",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *ServeParams, cmd *cobra.Command, args []string) {
			if err := runServe(cmd.Context(), params); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "serve: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runServe(ctx context.Context, params *ServeParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(params.Config)
	if err != nil {
		return err
	}
	if params.Port != "" {
		cfg.Server.Port = params.Port
	}

	a, err := app.New(cfg, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close player")
		}
	}()

	if !media.AudioAvailable {
		a.Logger.Warn("Built without audio output; playback requests will fail")
	}

	remote := server.NewRemoteServer(cfg, a.Machine, a.DB, a.Logger).WithAudioAvailable(media.AudioAvailable)
	if err := remote.Start(ctx); err != nil {
		return err
	}

	a.Logger.Info("Received shutdown signal")
	return nil
}
