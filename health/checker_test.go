package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHTTPProber(t *testing.T) {
	tests := []struct {
		name        string
		code        int
		wantOutcome Outcome
	}{
		{"ok", http.StatusOK, OutcomeSuccess},
		{"no content", http.StatusNoContent, OutcomeSuccess},
		{"server error", http.StatusServiceUnavailable, OutcomeFailure},
		{"not found", http.StatusNotFound, OutcomeFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/health" {
					t.Errorf("path = %q, want /health", r.URL.Path)
				}
				w.WriteHeader(tt.code)
			}))
			defer srv.Close()

			res := NewHTTPProber("/health").Probe(context.Background(), srv.URL)

			if res.Outcome != tt.wantOutcome {
				t.Errorf("Outcome = %v, want %v (err %v)", res.Outcome, tt.wantOutcome, res.Err)
			}
			if res.Code != tt.code {
				t.Errorf("Code = %d, want %d", res.Code, tt.code)
			}
		})
	}
}

func TestHTTPProber_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := NewHTTPProber("").Probe(context.Background(), url)

	if res.Outcome != OutcomeUnreachable {
		t.Errorf("Outcome = %v, want unreachable", res.Outcome)
	}
	if res.Err == nil {
		t.Error("Err = nil, want transport error")
	}
}

func TestTCPProber(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	addr := ln.Addr().String()

	res := (&TCPProber{}).Probe(context.Background(), "tcp://"+addr)
	if res.Outcome != OutcomeSuccess {
		t.Errorf("Outcome = %v, want success (err %v)", res.Outcome, res.Err)
	}

	ln.Close()
	res = (&TCPProber{}).Probe(context.Background(), "tcp://"+addr)
	if res.Outcome != OutcomeUnreachable {
		t.Errorf("Outcome after close = %v, want unreachable", res.Outcome)
	}
}

func TestSchemeProber(t *testing.T) {
	called := ""
	sp := NewSchemeProber().Handle("fake", ProberFunc(func(ctx context.Context, endpoint string) ProbeResult {
		called = endpoint
		return Success(0, 0)
	}))

	if !sp.Supports("fake://svc") {
		t.Error("Supports(fake://svc) = false, want true")
	}
	if res := sp.Probe(context.Background(), "fake://svc"); res.Outcome != OutcomeSuccess || called != "fake://svc" {
		t.Errorf("Probe() = %+v, called %q", res, called)
	}

	res := sp.Probe(context.Background(), "amqp://broker")
	if res.Outcome != OutcomeUnreachable || !errors.Is(res.Err, ErrUnsupportedScheme) {
		t.Errorf("Probe(amqp) = %+v, want unreachable with ErrUnsupportedScheme", res)
	}
}

func TestDefaultProber_Schemes(t *testing.T) {
	sp := DefaultProber()
	for _, ep := range []string{"http://a", "https://a", "grpc://a:50051", "tcp://a:5432"} {
		if !sp.Supports(ep) {
			t.Errorf("Supports(%q) = false, want true", ep)
		}
	}
	if sp.Supports("ftp://a") {
		t.Error("Supports(ftp://a) = true, want false")
	}
}

func TestProbeResult_ErrorText(t *testing.T) {
	if got := Failure(0, 502, nil).errorText(); !strings.Contains(got, "502") {
		t.Errorf("errorText() = %q, want mention of 502", got)
	}
	if got := Success(0, 200).errorText(); got != "" {
		t.Errorf("errorText() = %q, want empty", got)
	}
}
