package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/reverie-ai/reverie/internal/config"
	"github.com/reverie-ai/reverie/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg.Log.Level)

	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	eng, err := buildEngine(cfg, db, log)
	if err != nil {
		return err
	}
	defer eng.Stop()

	configureEmbedder(eng, cfg, db, log)

	// Cold start: the index is rebuilt from the store rather than persisted.
	if _, err := eng.RebuildIndex(cmd.Context()); err != nil {
		return err
	}

	// Backfill embeddings for memories missing vectors.
	if eng.Embedder != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()
			if n, err := eng.EmbedMissing(ctx); err != nil {
				log.Warn().Err(err).Msg("embed missing")
			} else if n > 0 {
				log.Info().Int("embedded", n).Msg("backfilled missing embeddings")
			}
		}()
	}

	eng.StartDecayWorker()

	srv := server.New(db, eng, log, VersionString())
	addr := cfg.ListenAddr()

	httpServer := &http.Server{
		Addr:    addr,
		Handler: srv,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", addr).Str("db", db.Path).Msg("reverie serving")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			os.Exit(1)
		}
	}()

	<-done
	log.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return httpServer.Shutdown(ctx)
}
