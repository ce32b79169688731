package health

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"
)

// Outcome classifies a single probe.
type Outcome int

const (
	// OutcomeSuccess means the service answered and reported success.
	OutcomeSuccess Outcome = iota
	// OutcomeFailure means the service answered but reported failure.
	OutcomeFailure
	// OutcomeUnreachable means no answer arrived within the probe timeout.
	OutcomeUnreachable
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomeUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// ProbeResult is the result of one probe.
type ProbeResult struct {
	Outcome      Outcome
	ResponseTime time.Duration

	// Code is the protocol status observed: an HTTP status code or a gRPC
	// serving status. Zero when nothing was received.
	Code int

	// Err describes a failure or unreachable outcome.
	Err error
}

func (r ProbeResult) errorText() string {
	switch {
	case r.Err != nil:
		return r.Err.Error()
	case r.Outcome == OutcomeFailure:
		return fmt.Sprintf("unsuccessful response (code %d)", r.Code)
	default:
		return ""
	}
}

// Success creates a success result.
func Success(rt time.Duration, code int) ProbeResult {
	return ProbeResult{Outcome: OutcomeSuccess, ResponseTime: rt, Code: code}
}

// Failure creates a reachable-but-unsuccessful result.
func Failure(rt time.Duration, code int, err error) ProbeResult {
	return ProbeResult{Outcome: OutcomeFailure, ResponseTime: rt, Code: code, Err: err}
}

// Unreachable creates an unreachable result.
func Unreachable(rt time.Duration, err error) ProbeResult {
	return ProbeResult{Outcome: OutcomeUnreachable, ResponseTime: rt, Err: err}
}

// Prober performs a single health probe of an endpoint.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: implementations should return promptly once ctx is done; the
// monitor enforces the deadline regardless.
// - Errors: failures are reported in the result, never by panicking.
type Prober interface {
	Probe(ctx context.Context, endpoint string) ProbeResult
}

// ProberFunc adapts a function to the Prober interface.
type ProberFunc func(ctx context.Context, endpoint string) ProbeResult

// Probe implements Prober.
func (f ProberFunc) Probe(ctx context.Context, endpoint string) ProbeResult {
	return f(ctx, endpoint)
}

// HTTPProber issues GET requests. 2xx is success, any other status is a
// failure, and a transport error is unreachable.
type HTTPProber struct {
	Client *http.Client

	// Path is appended to the endpoint when set, e.g. "/health".
	Path string
}

// NewHTTPProber creates an HTTP prober with a dedicated client.
func NewHTTPProber(path string) *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{Transport: http.DefaultTransport.(*http.Transport).Clone()},
		Path:   path,
	}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, endpoint string) ProbeResult {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+p.Path, nil)
	if err != nil {
		return Unreachable(0, err)
	}
	req.Header.Set("User-Agent", "phoenix-health-monitor")

	client := p.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return Unreachable(time.Since(start), err)
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()

	rt := time.Since(start)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return Success(rt, resp.StatusCode)
	}
	return Failure(rt, resp.StatusCode, fmt.Errorf("unexpected status %s", resp.Status))
}

// TCPProber treats a completed TCP handshake as success.
type TCPProber struct {
	Dialer net.Dialer
}

// Probe implements Prober.
func (p *TCPProber) Probe(ctx context.Context, endpoint string) ProbeResult {
	start := time.Now()
	u, err := url.Parse(endpoint)
	if err != nil {
		return Unreachable(0, err)
	}
	conn, err := p.Dialer.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return Unreachable(time.Since(start), err)
	}
	_ = conn.Close()
	return Success(time.Since(start), 0)
}

// SchemeProber dispatches on the endpoint's URL scheme.
type SchemeProber struct {
	probers map[string]Prober
}

// NewSchemeProber creates a dispatcher. Register probers with Handle.
func NewSchemeProber() *SchemeProber {
	return &SchemeProber{probers: make(map[string]Prober)}
}

// DefaultProber handles http, https and tcp endpoints, plus grpc endpoints
// through the standard gRPC health protocol.
func DefaultProber() *SchemeProber {
	httpProber := NewHTTPProber("")
	return NewSchemeProber().
		Handle("http", httpProber).
		Handle("https", httpProber).
		Handle("tcp", &TCPProber{}).
		Handle("grpc", NewGRPCProber(""))
}

// Handle registers p for scheme and returns the dispatcher for chaining.
func (s *SchemeProber) Handle(scheme string, p Prober) *SchemeProber {
	s.probers[scheme] = p
	return s
}

// Supports reports whether endpoint's scheme has a registered prober.
func (s *SchemeProber) Supports(endpoint string) bool {
	u, err := url.Parse(endpoint)
	if err != nil {
		return false
	}
	_, ok := s.probers[u.Scheme]
	return ok
}

// Probe implements Prober.
func (s *SchemeProber) Probe(ctx context.Context, endpoint string) ProbeResult {
	u, err := url.Parse(endpoint)
	if err != nil {
		return Unreachable(0, err)
	}
	p, ok := s.probers[u.Scheme]
	if !ok {
		return Unreachable(0, fmt.Errorf("%w: %q", ErrUnsupportedScheme, u.Scheme))
	}
	return p.Probe(ctx, endpoint)
}
