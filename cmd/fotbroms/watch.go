package main

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	uerrors "github.com/tongue/fotbroms/internal/errors"
	"github.com/tongue/fotbroms/internal/watch"
	"github.com/tongue/fotbroms/pkg/dom"
	"github.com/tongue/fotbroms/pkg/middleware"
)

type watchOptions struct {
	settle      time.Duration
	metricsAddr string

	// ready, if set, receives the metrics address (nil without metrics)
	// once the directory is being watched.
	ready chan<- net.Addr
}

func watchCmd(a *app) *cobra.Command {
	var opts watchOptions

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Upload every file that appears in a directory",
		Long: `Watch a directory and drop each new file on an upload area, as if a
user dragged it there. Files are picked up once they have stopped
changing, so copies in progress are not sent half-written. Hidden
and partial-download files are skipped.

With --metrics-addr the widget's events are counted and served
in Prometheus format.

Examples:
  fotbroms watch ~/Pictures/inbox
  fotbroms watch --accepts "image/*" --metrics-addr :9100 ./inbox`,
		Args: cobra.ExactArgs(1),
		PreRunE: a.load(map[string]string{
			"url":     "client.url",
			"accepts": "client.accepts",
			"timeout": "client.timeout",
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, a, cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().String("url", "", "Upload target, the form action (default http://localhost:8080/)")
	cmd.Flags().String("accepts", "", "Accept-list (default: accept everything)")
	cmd.Flags().Duration("timeout", 0, "Request timeout (default: none)")
	cmd.Flags().DurationVar(&opts.settle, "settle", 500*time.Millisecond, "Quiet period before a new file is uploaded")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve widget metrics on this address")

	return cmd
}

func runWatch(ctx context.Context, a *app, out io.Writer, dir string, opts watchOptions) error {
	if err := a.cfg.ValidateClient(); err != nil {
		return err
	}
	w, err := watch.New(watch.Config{Dir: dir, Settle: opts.settle, Logger: a.logger})
	if err != nil {
		return uerrors.New("C002").WithDetailf("cannot watch %s", dir).Wrap(err)
	}

	h, err := newHost(a.cfg, a.logger, out, nil)
	if err != nil {
		w.Close()
		return err
	}
	defer h.close()

	g, gctx := errgroup.WithContext(ctx)

	var metricsAddr net.Addr
	if opts.metricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics := middleware.NewMetrics(middleware.WithRegistry(registry))
		defer metrics.InstrumentWidget(h.el)()

		ln, err := net.Listen("tcp", opts.metricsAddr)
		if err != nil {
			w.Close()
			return err
		}
		metricsAddr = ln.Addr()
		srv := &http.Server{
			Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		info("Metrics: http://%s/metrics", metricsAddr)
	}

	g.Go(func() error {
		return w.Run(gctx, func(path string) {
			f, err := dom.OpenFile(path)
			if err != nil {
				errorMsg("%s: %v", path, err)
				return
			}
			h.drop(f)
		})
	})
	info("Watching %s, uploading to %s", dir, a.cfg.Client.URL)
	if opts.ready != nil {
		opts.ready <- metricsAddr
	}

	err = g.Wait()
	h.widget.Wait()
	uploaded, rejected, failed := h.report.counts()
	success("%d uploaded, %d rejected, %d failed", uploaded, rejected, failed)
	return err
}
