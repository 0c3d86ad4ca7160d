package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tongue/fotbroms/internal/errors"
	"github.com/tongue/fotbroms/pkg/live"
)

func tailCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Follow the server's feed of stored uploads",
		Long: `Print every upload the server stores, from any client, as it is
announced on the server's live feed. Runs until interrupted or
until the server goes away.

Examples:
  fotbroms tail
  fotbroms tail --url https://uploads.example.com/`,
		Args: cobra.NoArgs,
		PreRunE: a.load(map[string]string{
			"url": "client.url",
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runTail(ctx, a, cmd.OutOrStdout(), nil)
		},
	}

	cmd.Flags().String("url", "", "Upload server URL (default http://localhost:8080/)")

	return cmd
}

func runTail(ctx context.Context, a *app, out io.Writer, ready chan<- struct{}) error {
	if err := a.cfg.ValidateClient(); err != nil {
		return err
	}
	feed, err := live.FeedURL(a.cfg.Client.URL)
	if err != nil {
		return errors.New("C001").WithDetailf("client.url: %v", err)
	}

	a.logger.Debug("following", "feed", feed)
	err = live.Follow(ctx, feed, ready, func(n live.Notice) {
		fmt.Fprintf(out, "%s  %s  %s  %d bytes  %s\n",
			n.StoredAt.Local().Format(time.DateTime), n.Path, n.Filename, n.Size, typeOrUnknown(n.ContentType))
	})
	if err != nil {
		return errors.Newf(errors.CategoryTransfer, "cannot follow %s", feed).Wrap(err)
	}
	return nil
}
