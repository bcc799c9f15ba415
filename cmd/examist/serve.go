package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"examist/internal/catalog/httpapi"
)

const shutdownTimeout = 5 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the configured catalog over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if c.cfg.Log.Level != "debug" {
				gin.SetMode(gin.ReleaseMode)
			}
			return c.serve(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}

// handler routes /metrics to the metrics sink, when one is on, and
// everything else to the catalog API.
func (c *cli) handler() http.Handler {
	mux := http.NewServeMux()
	if h := c.metrics.handler(); h != nil {
		mux.Handle("/metrics", h)
	}
	mux.Handle("/", httpapi.NewHandler(c.backend,
		httpapi.WithServerLogger(c.logger),
		httpapi.WithServiceName("examist")))
	return mux
}

func (c *cli) serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: c.handler(), ReadHeaderTimeout: 10 * time.Second}
	c.logger.Info("serving catalog", "addr", ln.Addr().String(), "driver", c.backend.Driver)

	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	c.logger.Info("catalog server stopped")
	return nil
}
