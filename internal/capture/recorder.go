// Package capture records live HTTP traffic into an append-only JSON-lines
// log and reads it back for analysis. The recorder is a forward proxy; point
// a client at it and every exchange lands in the log with request/response
// correlation preserved.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/elazarl/goproxy"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apiscribe/apiscribe/api/schemas"
	"github.com/apiscribe/apiscribe/internal/config"
)

// maxPreservedBody caps how much of a body the recorder keeps per entry.
// Bodies past the cap are truncated, not dropped; the inference engine only
// needs enough to see the structure.
const maxPreservedBody = 1 << 20

// Recorder runs a recording HTTP proxy. Each observed request is assigned an
// ID; its response entry carries that ID in RequestID so downstream analysis
// can pair them.
type Recorder struct {
	log       *zap.Logger
	cfg       config.CaptureConfig
	proxy     *goproxy.ProxyHttpServer
	ca        *CA
	server    *http.Server
	writeMu   sync.Mutex
	file      *os.File
	closeOnce sync.Once
}

func NewRecorder(cfg config.CaptureConfig, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Recorder{
		log:   logger.Named("capture.recorder"),
		cfg:   cfg,
		proxy: goproxy.NewProxyHttpServer(),
	}
	if err := r.enableTLSInterception(); err != nil {
		// HTTPS exchanges fall back to opaque tunnels; HTTP still records.
		r.log.Warn("TLS interception disabled.", zap.Error(err))
	}
	r.proxy.OnRequest().DoFunc(r.onRequest)
	r.proxy.OnResponse().DoFunc(r.onResponse)
	return r
}

// enableTLSInterception generates a session CA and MITMs every CONNECT so
// HTTPS requests and responses are visible to the capture hooks.
func (r *Recorder) enableTLSInterception() error {
	ca, err := NewCA()
	if err != nil {
		return err
	}
	keypair, err := ca.TLSCertificate()
	if err != nil {
		return err
	}
	r.ca = ca
	action := &goproxy.ConnectAction{
		Action:    goproxy.ConnectMitm,
		TLSConfig: goproxy.TLSConfigFromCA(&keypair),
	}
	r.proxy.OnRequest().HandleConnectFunc(func(host string, ctx *goproxy.ProxyCtx) (*goproxy.ConnectAction, string) {
		return action, host
	})
	return nil
}

// CACertPEM exposes the session CA certificate so a client can trust the
// intercepted connections. Empty when interception is disabled.
func (r *Recorder) CACertPEM() []byte {
	if r.ca == nil {
		return nil
	}
	return r.ca.CertPEM
}

// Run starts the proxy listener and blocks until ctx is canceled or the
// listener fails. The capture log is opened for append so repeated sessions
// accumulate into one log.
func (r *Recorder) Run(ctx context.Context) error {
	f, err := os.OpenFile(r.cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open capture log: %w", err)
	}
	r.file = f
	defer r.Close()

	r.server = &http.Server{Addr: r.cfg.ListenAddr, Handler: r.proxy}
	errCh := make(chan error, 1)
	go func() {
		r.log.Info("Capture proxy listening.", zap.String("addr", r.cfg.ListenAddr))
		errCh <- r.server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = r.server.Shutdown(shutdownCtx)
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("capture proxy: %w", err)
	}
}

// Close flushes and closes the capture log.
func (r *Recorder) Close() {
	r.closeOnce.Do(func() {
		if r.file != nil {
			r.writeMu.Lock()
			_ = r.file.Close()
			r.writeMu.Unlock()
		}
	})
}

func (r *Recorder) onRequest(req *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	entry := schemas.CaptureEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      schemas.CaptureRequest,
		Protocol:  schemas.ProtocolREST,
		Method:    req.Method,
		URL:       req.URL.String(),
		Headers:   flattenHeader(req.Header),
	}
	ctx.UserData = entry.ID

	if r.cfg.PreserveBodies && req.Body != nil {
		body, rest, err := peekBody(req.Body)
		if err != nil {
			r.log.Warn("Failed to read request body.", zap.Error(err))
		} else {
			req.Body = rest
			entry.Body = string(body)
		}
	}
	r.writeEntry(entry)
	return req, nil
}

func (r *Recorder) onResponse(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	if resp == nil {
		return nil
	}
	entry := schemas.CaptureEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Type:      schemas.CaptureResponse,
		Status:    resp.StatusCode,
		Headers:   flattenHeader(resp.Header),
	}
	if id, ok := ctx.UserData.(string); ok {
		entry.RequestID = id
	}

	if r.cfg.PreserveBodies && resp.Body != nil {
		body, rest, err := peekBody(resp.Body)
		if err != nil {
			r.log.Warn("Failed to read response body.", zap.Error(err))
		} else {
			resp.Body = rest
			if decoded, derr := DecodeBody(body, resp.Header.Get("Content-Encoding")); derr == nil {
				entry.Body = string(decoded)
			} else {
				entry.Body = string(body)
			}
		}
	}
	r.writeEntry(entry)
	return resp
}

// writeEntry appends one JSON line to the capture log. Failures are logged
// and dropped; recording must never break the proxied exchange.
func (r *Recorder) writeEntry(entry schemas.CaptureEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		r.log.Error("Failed to encode capture entry.", zap.Error(err))
		return
	}
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if r.file == nil {
		return
	}
	if _, err := r.file.Write(append(data, '\n')); err != nil {
		r.log.Error("Failed to write capture entry.", zap.Error(err))
	}
}

// peekBody reads up to maxPreservedBody bytes and returns both the captured
// prefix and a replacement body that replays the full stream.
func peekBody(body io.ReadCloser) ([]byte, io.ReadCloser, error) {
	captured, err := io.ReadAll(io.LimitReader(body, maxPreservedBody))
	if err != nil {
		return nil, body, err
	}
	rest := io.MultiReader(bytes.NewReader(captured), body)
	return captured, &replayBody{Reader: rest, closer: body}, nil
}

type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error { return b.closer.Close() }

func flattenHeader(h http.Header) map[string]string {
	if len(h) == 0 {
		return nil
	}
	out := make(map[string]string, len(h))
	for name := range h {
		out[name] = h.Get(name)
	}
	return out
}
