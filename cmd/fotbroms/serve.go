package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tongue/fotbroms/internal/config"
	"github.com/tongue/fotbroms/internal/server"
)

func serveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the upload server",
		Long: `Run the server upload areas send files to.

PUT / stores the request body under its SHA-256 and answers with
the stored path. Stored files are served back under the storage
prefix, announced on /live and counted on /metrics.

Examples:
  fotbroms serve
  fotbroms serve --addr :9000 --dir /srv/uploads --accepts "image/*"
  FOTBROMS_S3_BUCKET=photos fotbroms serve --backend s3`,
		Args: cobra.NoArgs,
		PreRunE: a.load(map[string]string{
			"addr":      "server.addr",
			"max-size":  "server.max_file_size",
			"accepts":   "server.accepts",
			"retention": "server.retention",
			"backend":   "storage.backend",
			"dir":       "storage.dir",
			"bucket":    "s3.bucket",
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), a)
		},
	}

	cmd.Flags().StringP("addr", "a", "", "Address to listen on (default :8080)")
	cmd.Flags().Int64("max-size", 0, "Largest accepted upload in bytes (default 1GiB)")
	cmd.Flags().String("accepts", "", "Server-side accept-list (default: accept everything)")
	cmd.Flags().Duration("retention", 0, "Remove uploads older than this (default: keep forever)")
	cmd.Flags().String("backend", "", "Storage backend: disk or s3 (default disk)")
	cmd.Flags().String("dir", "", "Disk storage directory (default ./uploads)")
	cmd.Flags().String("bucket", "", "S3 bucket")

	return cmd
}

func runServe(ctx context.Context, a *app) error {
	cfg := a.cfg
	if err := cfg.ValidateServer(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := server.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}

	if cfg.Path() != "" {
		info("Config:  %s", cfg.Path())
	}
	switch cfg.Storage.Backend {
	case config.BackendS3:
		info("Storage: s3://%s/%s", cfg.S3.Bucket, cfg.Storage.Prefix)
	default:
		info("Storage: %s", cfg.Storage.Dir)
	}
	if cfg.Server.SessionSecret == "" {
		warn("No session secret set; sessions end when the server restarts")
	}

	s := server.New(server.Options{
		Config: cfg,
		Store:  store,
		Logger: a.logger,
	})
	if err := s.Run(ctx); err != nil {
		return err
	}
	success("Server stopped")
	return nil
}
