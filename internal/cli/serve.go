package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hybridrag/internal/transport/rest"
)

var (
	serveAddr   string
	serveImport string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve search over HTTP",
	Long: `Start an HTTP server exposing POST /search, GET /healthz and GET /metrics.

With the memory store, pass --import to load a corpus before serving.

Examples:
  hybridrag serve
  hybridrag serve --addr :9000 --import ./corpus`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	serveCmd.Flags().StringVar(&serveImport, "import", "", "import corpus files from this directory before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	logger := GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := OpenStore(cfg, GetRootDir(), logger)
	if err != nil {
		return err
	}
	defer st.Close()

	if serveImport != "" {
		path, err := filepath.Abs(serveImport)
		if err != nil {
			return fmt.Errorf("invalid path: %w", err)
		}
		if _, err := importCorpus(cmd, cfg, st, path, logger, false); err != nil {
			return err
		}
	}

	embedder, err := NewEmbedder(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}
	searcher, err := NewSearcher(cfg, st, embedder, logger)
	if err != nil {
		return err
	}

	addr := cfg.HTTP.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	srv := &http.Server{
		Addr:         addr,
		Handler:      rest.NewServer(searcher, logger).Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownTimeoutSec)*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
