package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"memory-palace/internal/app"
	"memory-palace/internal/metrics"
	transport "memory-palace/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the websocket quiz server.
func NewServeCmd(root *rootOptions) *cobra.Command {
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve quizzes over websockets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServer(cmd.Context(), root, port)
		},
	}
	cmd.Flags().StringVar(&port, "port", "", "port to listen on (defaults to server.port)")
	return cmd
}

func runServer(ctx context.Context, root *rootOptions, portFlag string) error {
	rt, err := newRuntime(ctx, root)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.pool != nil {
		if err := runMigrationsWithConfig(ctx, rt.cfg, rt.logger); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = rt.cfg.Server.Port
	}

	m := metrics.New()
	service := rt.service(
		app.WithDeckRepository(rt.deckCache()),
		app.WithSessionRepository(rt.sessionRepository()),
		app.WithServiceObserver(m),
	)
	wsHandler := transport.NewWSHandler(service, rt.logger.Named("ws"), rt.cfg.ClampCount)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     transport.NewRouter(service, wsHandler, m.Handler()),
		ReadTimeout: 15 * time.Second,
	}
	server.RegisterOnShutdown(wsHandler.Close)

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("starting memory palace server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	select {
	case <-stop:
		rt.logger.Info("shutting down server...")
	case <-ctx.Done():
		rt.logger.Info("context canceled, shutting down server...")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err = server.Shutdown(shutdownCtx)
	if waitErr := wsHandler.Wait(shutdownCtx); waitErr != nil {
		rt.logger.Warn("websocket quizzes still running at shutdown", zap.Error(waitErr))
	}
	return err
}
