package uploadarea_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/tongue/fotbroms/pkg/dom"
	"github.com/tongue/fotbroms/pkg/uploadarea"
)

// steppedTransport reports each step as (loaded, total) before answering.
func steppedTransport(total int64, steps []int64, status int, body string) uploadarea.Transport {
	return uploadarea.TransportFunc(func(_ context.Context, _ *uploadarea.Request, progress uploadarea.ProgressFunc) (*uploadarea.Response, error) {
		for _, loaded := range steps {
			progress(loaded, total)
		}
		return &uploadarea.Response{StatusCode: status, Body: body}, nil
	})
}

func TestProgress_RoundedPercentages(t *testing.T) {
	w, rec := newArea(t, "", steppedTransport(3, []int64{1, 2, 3}, 200, "p"))
	mustAttach(t, w)

	drop(w, dom.NewFile("a.png", "image/png", []byte("abc")))
	w.Wait()

	if got, want := rec.Progress(), []int{33, 67, 100}; !reflect.DeepEqual(got, want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
}

func TestProgress_NeverDecreasesAndStaysInRange(t *testing.T) {
	steps := []int64{50, 20, 100, 150, 80}
	w, rec := newArea(t, "", steppedTransport(100, steps, 200, "p"))
	mustAttach(t, w)

	drop(w, dom.NewFile("a.png", "image/png", []byte("x")))
	w.Wait()

	got := rec.Progress()
	if len(got) != len(steps) {
		t.Fatalf("progress = %v, want %d values", got, len(steps))
	}
	prev := 0
	for _, p := range got {
		if p < 0 || p > 100 {
			t.Fatalf("progress %d out of range in %v", p, got)
		}
		if p < prev {
			t.Fatalf("progress decreased in %v", got)
		}
		prev = p
	}
}

func TestProgress_UnknownTotalIsNotReported(t *testing.T) {
	w, rec := newArea(t, "", steppedTransport(-1, []int64{10, 20}, 200, "p"))
	mustAttach(t, w)

	drop(w, dom.NewFile("a.png", "image/png", []byte("x")))
	w.Wait()

	if p := rec.Progress(); len(p) != 0 {
		t.Fatalf("progress = %v, want none", p)
	}
	if rec.Count(uploadarea.EventFileUploaded) != 1 {
		t.Fatalf("events = %v", rec.Types())
	}
}

func TestProgress_PrecedesTerminalEvent(t *testing.T) {
	for _, status := range []int{200, 500} {
		w, rec := newArea(t, "", steppedTransport(4, []int64{1, 2, 3, 4}, status, "body"))
		mustAttach(t, w)

		drop(w, dom.NewFile("a.png", "image/png", []byte("abcd")))
		w.Wait()

		types := rec.Types()
		want := []string{
			uploadarea.EventFileAccepted,
			uploadarea.EventFileUploading,
			uploadarea.EventFileProgress,
			uploadarea.EventFileProgress,
			uploadarea.EventFileProgress,
			uploadarea.EventFileProgress,
		}
		if status == 200 {
			want = append(want, uploadarea.EventFileUploaded)
		} else {
			want = append(want, uploadarea.EventFileUploadError)
		}
		if !reflect.DeepEqual(types, want) {
			t.Fatalf("status %d: events = %v, want %v", status, types, want)
		}
	}
}

func TestProgress_AfterTerminalIsDropped(t *testing.T) {
	var late uploadarea.ProgressFunc
	transport := uploadarea.TransportFunc(func(_ context.Context, _ *uploadarea.Request, progress uploadarea.ProgressFunc) (*uploadarea.Response, error) {
		progress(1, 2)
		late = progress
		return &uploadarea.Response{StatusCode: 200, Body: "p"}, nil
	})
	w, rec := newArea(t, "", transport)
	mustAttach(t, w)

	drop(w, dom.NewFile("a.png", "image/png", []byte("ab")))
	w.Wait()
	late(2, 2)

	if got := rec.Progress(); !reflect.DeepEqual(got, []int{50}) {
		t.Fatalf("progress = %v, want [50]", got)
	}
	types := rec.Types()
	if types[len(types)-1] != uploadarea.EventFileUploaded {
		t.Fatalf("last event = %s, want fileuploaded", types[len(types)-1])
	}
}

func TestExactlyOneTerminalEventPerAcceptedFile(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    error
	}{
		{name: "ok", status: 200},
		{name: "server error", status: 500},
		{name: "not found", status: 404},
		{name: "network", err: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := uploadarea.TransportFunc(func(context.Context, *uploadarea.Request, uploadarea.ProgressFunc) (*uploadarea.Response, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return &uploadarea.Response{StatusCode: tt.status}, nil
			})
			w, rec := newArea(t, "", transport)
			mustAttach(t, w)

			drop(w, dom.NewFile("a.png", "image/png", []byte("x")))
			w.Wait()

			terminal := rec.Count(uploadarea.EventFileUploaded) + rec.Count(uploadarea.EventFileUploadError)
			if terminal != 1 {
				t.Fatalf("terminal events = %d, want 1 (%v)", terminal, rec.Types())
			}
			if rec.Count(uploadarea.EventFileUploading) != 1 {
				t.Fatalf("events = %v", rec.Types())
			}
		})
	}
}

func TestTransferError(t *testing.T) {
	tests := []struct {
		err  *uploadarea.TransferError
		want string
	}{
		{&uploadarea.TransferError{StatusCode: 500, Body: "boom"}, "upload: status 500: boom"},
		{&uploadarea.TransferError{Err: context.Canceled}, "upload: context canceled"},
		{&uploadarea.TransferError{StatusCode: 200, Err: context.Canceled}, "upload: status 200: context canceled"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
