package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ostplayer/internal/app"
	"ostplayer/internal/config"
	"ostplayer/internal/media"
	"ostplayer/internal/server"
	"ostplayer/internal/tui"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
)

type PlayParams struct {
	Config string `short:"c" help:"Path to the TOML configuration file." default:"./config.toml"`
	Remote bool   `help:"Serve the HTTP remote while the terminal UI runs." default:"false"`
}

func PlayCmd() *cobra.Command {
	return boa.CmdT[PlayParams]{
		Use:         "play",
		Short:       "Open the player in the terminal",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *PlayParams, cmd *cobra.Command, args []string) {
			if err := runPlay(cmd.Context(), params); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "play: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runPlay(ctx context.Context, params *PlayParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig(params.Config)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI; logs go to the configured file or nowhere
	a, err := app.New(cfg, io.Discard)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.WithError(err).Warn("Failed to close player")
		}
	}()

	if params.Remote {
		remote := server.NewRemoteServer(cfg, a.Machine, a.DB, a.Logger).WithAudioAvailable(media.AudioAvailable)
		go func() {
			if err := remote.Start(ctx); err != nil {
				a.Logger.WithError(err).Error("Remote server stopped")
			}
		}()
	}

	return tui.Run(ctx, a.Machine)
}
