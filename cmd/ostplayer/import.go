package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"ostplayer/internal/catalog"
	"ostplayer/internal/config"
	"ostplayer/internal/metadata"

	"github.com/GiGurra/boa/pkg/boa"
	"github.com/k0kubun/go-ansi"
	"github.com/spf13/cobra"
)

type ImportParams struct {
	Dir        string `pos:"true" required:"true" help:"Directory of audio files to import."`
	Config     string `short:"c" help:"Path to the TOML configuration file." default:"./config.toml"`
	Output     string `short:"o" help:"Catalog file to write (defaults to the configured catalog path)." optional:"true"`
	Thumbnails string `help:"Directory for extracted cover art." optional:"true"`
	Workers    int    `short:"w" help:"Number of files read in parallel." default:"4"`
}

func ImportCmd() *cobra.Command {
	return boa.CmdT[ImportParams]{
		Use:         "import",
		Short:       "Build a catalog from the tags of local audio files",
		ParamEnrich: defaultParamEnricher(),
		RunFunc: func(params *ImportParams, cmd *cobra.Command, args []string) {
			if err := runImport(cmd.Context(), params); err != nil {
				_, _ = fmt.Fprintf(os.Stderr, "import: %v\n", err)
				os.Exit(1)
			}
		},
	}.ToCobra()
}

func runImport(ctx context.Context, params *ImportParams) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	cfg, err := config.LoadConfig(params.Config)
	if err != nil {
		return err
	}
	logger, err := cfg.Logging.NewLogger(nil)
	if err != nil {
		return err
	}

	output := params.Output
	if output == "" {
		output = cfg.Catalog.Path
	}

	extractor := metadata.NewExtractor(cfg.Validator.SupportedFormats, logger)
	if params.Thumbnails != "" {
		dir, err := filepath.Abs(params.Thumbnails)
		if err != nil {
			return err
		}
		extractor.WithThumbnailDir(dir)
	}

	result, err := extractor.Import(ctx, params.Dir, metadata.ImportOptions{
		Workers:  params.Workers,
		Progress: ansi.NewAnsiStdout(),
	})
	if err != nil {
		return err
	}
	fmt.Println()
	fmt.Println(result.Describe())

	if len(result.Tracks) == 0 {
		return fmt.Errorf("no supported audio files in %s", params.Dir)
	}
	if err := catalog.Save(output, result.Tracks); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", output)
	return nil
}
