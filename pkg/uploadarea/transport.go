package uploadarea

import (
	"context"
	"io"
	"net/http"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/tongue/fotbroms/pkg/dom"
)

// HeaderFileName carries the original file name on upload requests.
const HeaderFileName = "File-Name"

const tracerName = "github.com/tongue/fotbroms/pkg/uploadarea"

// Request is one upload.
type Request struct {
	Method string
	URL    string
	File   *dom.File
}

// Response is a fully received server answer.
type Response struct {
	StatusCode int
	Body       string
}

// ProgressFunc receives cumulative bytes sent and the total size. total is
// -1 when the size is unknown.
type ProgressFunc func(loaded, total int64)

// Transport sends a file and waits for the complete response.
//
// RoundTrip returns a nil error only when a response was fully received;
// the status is interpreted by the caller. Progress callbacks may run on
// any goroutine, including briefly after RoundTrip returns; the widget
// drops those.
type Transport interface {
	RoundTrip(ctx context.Context, req *Request, progress ProgressFunc) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req *Request, progress ProgressFunc) (*Response, error)

// RoundTrip calls f.
func (f TransportFunc) RoundTrip(ctx context.Context, req *Request, progress ProgressFunc) (*Response, error) {
	return f(ctx, req, progress)
}

// HTTPTransport uploads over HTTP. The file bytes are the request body,
// its MIME type the Content-Type and its name the File-Name header.
type HTTPTransport struct {
	client *http.Client
	tracer trace.Tracer
}

// NewHTTPTransport creates a transport using client, or http.DefaultClient
// when nil. Spans are recorded with the global tracer provider.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{
		client: client,
		tracer: otel.Tracer(tracerName),
	}
}

// WithTracer sets the tracer used for upload spans.
func (t *HTTPTransport) WithTracer(tracer trace.Tracer) *HTTPTransport {
	t.tracer = tracer
	return t
}

// RoundTrip implements Transport.
func (t *HTTPTransport) RoundTrip(ctx context.Context, req *Request, progress ProgressFunc) (*Response, error) {
	f := req.File
	total := int64(-1)
	if f.SizeKnown() {
		total = f.Size
	}

	ctx, span := t.tracer.Start(ctx, "upload "+f.Name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.full", req.URL),
			attribute.String("upload.file.name", f.Name),
			attribute.String("upload.file.type", f.Type),
			attribute.Int64("upload.file.size", f.Size),
		),
	)
	defer span.End()

	resp, err := t.do(ctx, req, total, progress)
	if resp != nil {
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	}
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case resp.StatusCode != http.StatusOK:
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	default:
		span.SetStatus(codes.Ok, "")
	}
	return resp, err
}

func (t *HTTPTransport) do(ctx context.Context, req *Request, total int64, progress ProgressFunc) (*Response, error) {
	body, err := req.File.Open()
	if err != nil {
		return nil, err
	}

	pr := &progressReader{r: body, total: total, fn: progress}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, pr)
	if err != nil {
		body.Close()
		return nil, err
	}
	switch {
	case total > 0:
		httpReq.ContentLength = total
	case req.File.Size == 0:
		body.Close()
		httpReq.Body = http.NoBody
		httpReq.ContentLength = 0
	}
	if req.File.Type != "" {
		httpReq.Header.Set("Content-Type", req.File.Type)
	}
	httpReq.Header.Set(HeaderFileName, req.File.Name)
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := t.client.Do(httpReq)
	// The client may still be writing the body after Do returns.
	defer pr.stop()
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	// A body that cannot be read completely is a failed upload, whatever
	// the status.
	data, err := io.ReadAll(resp.Body)
	return &Response{StatusCode: resp.StatusCode, Body: string(data)}, err
}

// progressReader counts bytes read from r and reports them to fn.
type progressReader struct {
	r       io.ReadCloser
	total   int64
	fn      ProgressFunc
	loaded  int64
	stopped atomic.Bool
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.loaded += int64(n)
		if p.fn != nil && !p.stopped.Load() {
			p.fn(p.loaded, p.total)
		}
	}
	return n, err
}

func (p *progressReader) Close() error {
	return p.r.Close()
}

func (p *progressReader) stop() {
	p.stopped.Store(true)
}
