package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/comigor/pocketchat/internal/api"
	"github.com/comigor/pocketchat/internal/chat"
	"github.com/comigor/pocketchat/internal/llm"
	"github.com/comigor/pocketchat/internal/logger"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	assistant := chat.NewAssistant(llm.NewClient(d.cfg.LLM), d.cfg.LLM)
	controller := chat.NewController(d.store, assistant, d.cfg.LLM.Model)
	current, err := controller.Start(ctx)
	if err != nil {
		return err
	}
	// flushes the pending snapshot before storage closes
	defer controller.Close()
	logger.L.Info("session restored", "id", current.ID, "messages", len(current.Messages))

	srv := &http.Server{
		Addr:              d.cfg.Server.Addr(),
		Handler:           api.NewRouter(api.NewHandler(controller, d.store, d.images, d.speech)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L.Info("starting server", "address", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.L.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
