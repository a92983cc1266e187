package main

import (
	"fmt"
	"os"

	"ostplayer/internal/config"
	"ostplayer/internal/database"
	"ostplayer/internal/session"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/spf13/cobra"
)

type SessionParams struct {
	Config string `short:"c" help:"Path to the TOML configuration file." default:"./config.toml"`
}

func SessionCmd() *cobra.Command {
	return boa.CmdT[boa.NoParams]{
		Use:   "session",
		Short: "Manage the saved player session",
		SubCmds: []*cobra.Command{
			sessionEndCmd(),
		},
	}.ToCobra()
}

func sessionEndCmd() *cobra.Command {
	return boa.CmdT[SessionParams]{
		Use:         "end",
		Short:       "Forget the current session so the next start is fresh",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *SessionParams, cmd *cobra.Command, args []string) {
			if err := runSessionEnd(params); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "session end: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runSessionEnd(params *SessionParams) error {
	cfg, err := config.LoadConfig(params.Config)
	if err != nil {
		return err
	}
	if !cfg.Session.Enabled {
		fmt.Println("Sessions are disabled; nothing to end")
		return nil
	}

	logger, err := cfg.Logging.NewLogger(nil)
	if err != nil {
		return err
	}

	if _, err := os.Stat(cfg.Session.ScopeFile); os.IsNotExist(err) {
		fmt.Println("No active session")
		return nil
	}

	id, _, err := session.Identify(cfg.Session.ScopeFile)
	if err != nil {
		return err
	}

	db, err := database.NewDatabase(cfg.Session.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EndSession(id); err != nil {
		return err
	}
	if err := session.Forget(cfg.Session.ScopeFile); err != nil {
		return err
	}
	fmt.Printf("Ended session %s\n", id)
	return nil
}
