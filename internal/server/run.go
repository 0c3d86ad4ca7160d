package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is done, then shuts down gracefully. When
// retention is configured, expired uploads are removed periodically in
// the meantime.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("server starting", "address", ln.Addr().String())
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.logger.Info("shutting down...")

		// Hijacked feed connections are invisible to Shutdown.
		s.hub.Close()

		timeout := s.config.Server.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("shutdown error", "error", err)
			return err
		}
		s.logger.Info("server shutdown complete")
		return nil
	})

	if s.config.Server.Retention > 0 {
		g.Go(func() error {
			s.cleanupLoop(gctx)
			return nil
		})
	}

	return g.Wait()
}

func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(s.config.Server.CleanupInterval)
	defer ticker.Stop()

	for {
		s.cleanup(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cleanup removes uploads older than the retention period.
func (s *Server) cleanup(ctx context.Context) {
	n, err := s.store.Cleanup(ctx, s.config.Server.Retention)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Warn("cleanup failed", "error", err)
		}
		return
	}
	if n > 0 {
		s.logger.Info("expired uploads removed", "count", n)
	}
}
