package live_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tongue/fotbroms/pkg/live"
)

func newHub(t *testing.T, cfg *live.Config) (*live.Hub, string) {
	t.Helper()
	if cfg == nil {
		cfg = live.DefaultConfig()
	}
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	hub := live.NewHub(cfg)
	srv := httptest.NewServer(hub)
	t.Cleanup(func() {
		hub.Close()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

type collector struct {
	mu      sync.Mutex
	notices []live.Notice
	got     chan struct{}
}

func newCollector() *collector {
	return &collector{got: make(chan struct{}, 64)}
}

func (c *collector) add(n live.Notice) {
	c.mu.Lock()
	c.notices = append(c.notices, n)
	c.mu.Unlock()
	c.got <- struct{}{}
}

func (c *collector) wait(t *testing.T, n int) []live.Notice {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-c.got:
		case <-time.After(5 * time.Second):
			t.Fatalf("received %d notices, want %d", i, n)
		}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]live.Notice(nil), c.notices...)
}

// follow subscribes in the background and waits until the hub counts the
// subscriber.
func follow(t *testing.T, hub *live.Hub, url string, want int) (*collector, context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := newCollector()
	errc := make(chan error, 1)
	ready := make(chan struct{})
	go func() { errc <- live.Follow(ctx, url, ready, c.add) }()

	select {
	case <-ready:
	case err := <-errc:
		t.Fatalf("Follow: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("subscription not established")
	}
	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers() < want {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Subscribers(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
	return c, cancel, errc
}

func TestHub_PublishReachesEverySubscriber(t *testing.T) {
	hub, url := newHub(t, nil)

	a, cancelA, _ := follow(t, hub, url, 1)
	defer cancelA()
	b, cancelB, _ := follow(t, hub, url, 2)
	defer cancelB()

	stored := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	hub.Publish(live.Notice{Path: "uploads/abc.png", Filename: "a.png", ContentType: "image/png", Size: 3, StoredAt: stored})
	hub.Publish(live.Notice{Path: "uploads/def.mp4", Filename: "b.mp4", Size: 9})

	for name, c := range map[string]*collector{"a": a, "b": b} {
		got := c.wait(t, 2)
		if got[0].Path != "uploads/abc.png" || got[0].Filename != "a.png" || !got[0].StoredAt.Equal(stored) {
			t.Fatalf("%s: first notice = %+v", name, got[0])
		}
		if got[1].Path != "uploads/def.mp4" {
			t.Fatalf("%s: second notice = %+v", name, got[1])
		}
	}
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub, _ := newHub(t, nil)
	hub.Publish(live.Notice{Path: "x"})
	if hub.Subscribers() != 0 {
		t.Fatal("phantom subscriber")
	}
}

func TestFollow_ReturnsNilOnCancel(t *testing.T) {
	hub, url := newHub(t, nil)
	_, cancel, errc := follow(t, hub, url, 1)

	cancel()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Follow = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after cancel")
	}

	deadline := time.Now().Add(5 * time.Second)
	for hub.Subscribers() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d after disconnect", hub.Subscribers())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFollow_ReturnsNilWhenHubCloses(t *testing.T) {
	var counts []int
	var mu sync.Mutex
	cfg := live.DefaultConfig()
	cfg.OnSubscribers = func(n int) {
		mu.Lock()
		counts = append(counts, n)
		mu.Unlock()
	}
	hub, url := newHub(t, cfg)
	_, cancel, errc := follow(t, hub, url, 1)
	defer cancel()

	hub.Close()
	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("Follow = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Follow did not return after hub close")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(counts) < 2 || counts[0] != 1 || counts[len(counts)-1] != 0 {
		t.Fatalf("subscriber counts = %v, want 1 then 0", counts)
	}
}

func TestHub_RefusesAfterClose(t *testing.T) {
	hub, url := newHub(t, nil)
	hub.Close()

	var calls atomic.Int32
	err := live.Follow(context.Background(), url, nil, func(live.Notice) { calls.Add(1) })
	if err != nil {
		t.Fatalf("Follow = %v, want nil for a going-away close", err)
	}
	if hub.Subscribers() != 0 || calls.Load() != 0 {
		t.Fatal("closed hub accepted a subscriber")
	}
}

func TestFollow_DialError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	defer srv.Close()

	if err := live.Follow(context.Background(), url, nil, func(live.Notice) {}); err == nil {
		t.Fatal("expected an error from a non-websocket endpoint")
	}
}

func TestFeedURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "http://localhost:8080/", want: "ws://localhost:8080/live"},
		{in: "https://up.example.com/put?x=1", want: "wss://up.example.com/live"},
		{in: "ws://h/", want: "ws://h/live"},
		{in: "ftp://h/", wantErr: true},
		{in: "http:///nohost", wantErr: true},
	}
	for _, tt := range tests {
		got, err := live.FeedURL(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("FeedURL(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("FeedURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
