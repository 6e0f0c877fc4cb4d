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

	"github.com/aaronzipp/scavenger-hunt/internal/handlers"
	"github.com/aaronzipp/scavenger-hunt/internal/platform/otel"
	"github.com/aaronzipp/scavenger-hunt/internal/realtime"
	"github.com/aaronzipp/scavenger-hunt/internal/rooms"
	"github.com/aaronzipp/scavenger-hunt/internal/sweeper"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(a *app) *cobra.Command {
	var (
		port      int
		publicURL string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			if cmd.Flags().Changed("public-url") {
				a.cfg.PublicURL = publicURL
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 8080, "listen port (env PORT)")
	cmd.Flags().StringVar(&publicURL, "public-url", "", "base URL encoded in team QR codes (env PUBLIC_URL)")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	shutdownTracing, err := otel.Setup(ctx, "scavenger-hunt", otel.Options{
		Enabled:  a.cfg.OTelEnabled,
		Endpoint: a.cfg.OTelEndpoint,
	})
	if err != nil {
		a.logger.Warn("tracing disabled", "error", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = shutdownTracing(sctx)
	}()

	st, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	registry := rooms.NewRegistry(rooms.Config{
		Store:  st,
		Hub:    realtime.Options{Debug: a.cfg.Debug},
		Logger: a.logger,
	})
	defer registry.Close()

	sw := sweeper.New(sweeper.Config{
		Store:    st,
		Rooms:    registry,
		Interval: a.cfg.SweepInterval,
		RoomIdle: a.cfg.RoomIdle,
		Logger:   a.logger,
	})
	go sw.Run(ctx)

	h := &handlers.Context{
		Store:     st,
		Rooms:     registry,
		Logger:    a.logger,
		PublicURL: a.cfg.PublicURL,
	}
	srv := &http.Server{
		Addr:              a.cfg.Addr(),
		Handler:           h.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server listening", "addr", srv.Addr, "store", a.cfg.DatabaseType)
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

	a.logger.Info("shutting down")
	// hijacked websocket connections are not closed by Shutdown
	registry.Close()
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}
