package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tongue/fotbroms/internal/errors"
	"github.com/tongue/fotbroms/pkg/dom"
	"github.com/tongue/fotbroms/pkg/live"
)

func putCmd(a *app) *cobra.Command {
	var (
		picker bool
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "put <file>",
		Short: "Upload a file through an upload area",
		Long: `Upload one file the way a user would: by dropping it on an upload
area inside a form whose action is --url.

The file is checked against --accepts first. A rejected file is
not sent. Accepted files are sent as a PUT with File-Name and
Content-Type headers, and progress is printed as it arrives.

Examples:
  fotbroms put holiday.png
  fotbroms put --accepts "image/*, .mp4" --url http://uploads:8080/ clip.mp4
  fotbroms put --picker --follow report.pdf`,
		Args: cobra.ExactArgs(1),
		PreRunE: a.load(map[string]string{
			"url":     "client.url",
			"accepts": "client.accepts",
			"timeout": "client.timeout",
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(cmd.Context(), a, cmd.OutOrStdout(), args[0], picker, follow)
		},
	}

	cmd.Flags().String("url", "", "Upload target, the form action (default http://localhost:8080/)")
	cmd.Flags().String("accepts", "", `Accept-list, e.g. "image/*, .mp4" (default: accept everything)`)
	cmd.Flags().Duration("timeout", 0, "Request timeout (default: none)")
	cmd.Flags().BoolVar(&picker, "picker", false, "Select the file through the file picker instead of dropping it")
	cmd.Flags().BoolVar(&follow, "follow", false, "Wait for the server to announce the upload on its live feed")

	return cmd
}

// openHost is newHost, replaceable in tests.
var openHost = newHost

func runPut(ctx context.Context, a *app, out io.Writer, path string, picker, follow bool) error {
	if err := a.cfg.ValidateClient(); err != nil {
		return err
	}
	f, err := dom.OpenFile(path)
	if err != nil {
		return errors.New("C002").WithDetailf("cannot read %s", path).Wrap(err)
	}

	var chooser dom.Chooser
	if picker {
		chooser = dom.StaticChooser(f)
	}
	h, err := openHost(a.cfg, a.logger, out, chooser)
	if err != nil {
		return err
	}
	defer h.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var notices chan live.Notice
	if follow {
		notices, err = subscribe(ctx, a.cfg.Client.URL)
		if err != nil {
			return err
		}
	}

	if picker {
		h.click()
	} else {
		h.drop(f)
	}
	h.close()

	uploaded, rejected, _ := h.report.counts()
	switch {
	case rejected > 0:
		return errors.Newf(errors.CategoryCLI, "%s was rejected by the accept-list %q", f.Name, a.cfg.Client.Accepts)
	case uploaded == 0:
		return errors.New("U003").WithDetailf("%s was not stored", f.Name)
	}

	if follow {
		return awaitNotice(ctx, out, notices, h.report.lastPath())
	}
	return nil
}

// subscribe follows the live feed of the server at url in the background.
// It returns once the subscription is established.
func subscribe(ctx context.Context, url string) (chan live.Notice, error) {
	feed, err := live.FeedURL(url)
	if err != nil {
		return nil, errors.New("C001").WithDetailf("client.url: %v", err)
	}

	notices := make(chan live.Notice, 16)
	ready := make(chan struct{})
	errc := make(chan error, 1)
	go func() {
		errc <- live.Follow(ctx, feed, ready, func(n live.Notice) {
			select {
			case notices <- n:
			default:
			}
		})
	}()

	select {
	case <-ready:
		return notices, nil
	case err := <-errc:
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func awaitNotice(ctx context.Context, out io.Writer, notices <-chan live.Notice, path string) error {
	timeout := time.NewTimer(10 * time.Second)
	defer timeout.Stop()

	for {
		select {
		case n := <-notices:
			if n.Path == path {
				fmt.Fprintf(out, "  announced %s (%d bytes) at %s\n", n.Path, n.Size, n.StoredAt.Format(time.RFC3339))
				return nil
			}
		case <-timeout.C:
			return errors.Newf(errors.CategoryCLI, "no live notice for %s", path)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
