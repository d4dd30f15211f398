package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/comigor/pocketchat/internal/config"
	"github.com/comigor/pocketchat/internal/kv"
	"github.com/comigor/pocketchat/internal/logger"
	"github.com/comigor/pocketchat/internal/media"
	"github.com/comigor/pocketchat/internal/session"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "pocketchat",
	Short:        "Pocketchat - chat sessions backed by a hosted LLM",
	Long:         `Pocketchat keeps chat sessions in a key-value store, relays messages to an OpenAI-compatible endpoint and builds image and speech URLs.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if configPath != "" {
			os.Setenv("CONFIG_PATH", configPath)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file (default: ./config.yaml)")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
}

// deps are the components every subcommand shares.
type deps struct {
	cfg    *config.Config
	kv     kv.Store
	store  *session.Store
	images *media.ImageURLBuilder
	speech *media.SpeechURLBuilder
}

func loadDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)

	backend, err := kv.Open(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
	}
	logger.L.Info("storage opened", "backend", cfg.Storage.Backend)

	return &deps{
		cfg:    cfg,
		kv:     backend,
		store:  session.NewStore(backend),
		images: media.NewImageURLBuilder(cfg.Image),
		speech: media.NewSpeechURLBuilder(cfg.Speech),
	}, nil
}

func (d *deps) Close() {
	if err := d.kv.Close(); err != nil {
		logger.L.Warn("close storage", "error", err)
	}
}
