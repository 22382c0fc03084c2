package log

import (
	"log/slog"
	"net/http"
	"time"
)

// RequestIDHeader carries the request ID to the cloud functions.
const RequestIDHeader = "X-Request-ID"

// Transport logs every outbound request and tags it with a request ID.
type Transport struct {
	Base   http.RoundTripper
	Logger *Logger
}

// NewTransport wraps base (http.DefaultTransport when nil).
func NewTransport(base http.RoundTripper, logger *Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	if logger == nil {
		logger = &Logger{Logger: slog.Default()}
	}
	return &Transport{Base: base, Logger: logger.WithComponent(ComponentHTTP)}
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	ctx := req.Context()

	requestID := RequestID(ctx)
	if requestID == "" {
		requestID = GenerateRequestID()
	}
	req = req.Clone(ctx)
	req.Header.Set(RequestIDHeader, requestID)

	t.Logger.DebugContext(ctx, "HTTP request started",
		NewFields().
			WithRequestID(requestID).
			WithHTTPRequest(req.Method, req.URL.Path).
			ToSlice()...)

	resp, err := t.Base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		t.Logger.WarnContext(ctx, "HTTP request failed",
			NewFields().
				WithRequestID(requestID).
				WithHTTPRequest(req.Method, req.URL.Path).
				WithErrorType(ErrorTypeNetwork).
				WithError(err).
				ToSlice()...)
		return nil, err
	}

	// Use appropriate log level based on status code
	level := slog.LevelInfo
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		level = slog.LevelWarn
	} else if resp.StatusCode >= 500 {
		level = slog.LevelError
	}

	t.Logger.LogContext(ctx, level, "HTTP request completed",
		NewFields().
			WithRequestID(requestID).
			WithHTTPRequest(req.Method, req.URL.Path).
			WithHTTPResponse(resp.StatusCode, duration.Milliseconds(), resp.StatusCode < 400).
			ToSlice()...)

	return resp, nil
}
