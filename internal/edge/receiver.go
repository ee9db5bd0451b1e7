// Package edge is the public webhook receiver: it authenticates deliveries
// from the platform, acknowledges them at once and relays them, re-signed,
// to the backend.
package edge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"line-memo-relay/internal/domain"
	"line-memo-relay/internal/metrics"
	"line-memo-relay/internal/relay"
	"line-memo-relay/internal/signature"
)

const (
	// SignatureHeader carries base64(HMAC-SHA256(body, channel secret)).
	SignatureHeader = "X-Line-Signature"

	defaultMaxBodyBytes = 1 << 20

	ackBody    = "OK"
	rejectBody = "signature invalid"
)

// Forwarder delivers a relay envelope to the backend.
type Forwarder interface {
	Forward(ctx context.Context, env domain.RelayEnvelope) error
}

// Options configures a Receiver. A nil Forwarder puts the receiver in
// acknowledgment-only mode.
type Options struct {
	ChannelSecret string
	RelaySecret   string
	Forwarder     Forwarder
	MaxBodyBytes  int64
	Logger        *slog.Logger
	Now           func() time.Time
}

// Receiver handles inbound webhook deliveries.
type Receiver struct {
	channelSecret []byte
	relaySecret   []byte
	forwarder     Forwarder
	maxBodyBytes  int64
	logger        *slog.Logger
	now           func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc

	mu       sync.Mutex
	draining bool
	inflight sync.WaitGroup
}

func NewReceiver(opts Options) (*Receiver, error) {
	if opts.Forwarder != nil && opts.RelaySecret == "" {
		return nil, errors.New("edge: relay secret is required when forwarding is enabled")
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Receiver{
		channelSecret: []byte(opts.ChannelSecret),
		relaySecret:   []byte(opts.RelaySecret),
		forwarder:     opts.Forwarder,
		maxBodyBytes:  opts.MaxBodyBytes,
		logger:        opts.Logger,
		now:           opts.Now,
		baseCtx:       ctx,
		cancel:        cancel,
	}, nil
}

func (rc *Receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	header := r.Header.Get(SignatureHeader)
	if len(rc.channelSecret) == 0 || header == "" {
		rc.logger.Warn("webhook rejected", "reason", "missing secret or signature")
		rc.reject(w)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rc.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rc.logger.Warn("webhook rejected", "reason", "body too large", "limit", tooLarge.Limit)
			metrics.WebhookRequests.WithLabelValues("rejected").Inc()
			http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
			return
		}
		rc.logger.Warn("webhook rejected", "reason", "body read failed", "err", err)
		metrics.WebhookRequests.WithLabelValues("rejected").Inc()
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if !signature.Verify(rc.channelSecret, body, header) {
		rc.logger.Warn("webhook rejected", "reason", "signature mismatch")
		rc.reject(w)
		return
	}

	// Ack is flushed before any relay work starts.
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ackBody)
	_ = http.NewResponseController(w).Flush()
	metrics.WebhookRequests.WithLabelValues("accepted").Inc()
	rc.logger.Info("webhook accepted", "bytes", len(body))

	if rc.forwarder == nil {
		metrics.Forwards.WithLabelValues("skipped").Inc()
		return
	}
	rc.dispatch(relay.Seal(rc.relaySecret, body, rc.now()))
}

func (rc *Receiver) reject(w http.ResponseWriter) {
	metrics.WebhookRequests.WithLabelValues("rejected").Inc()
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusForbidden)
	_, _ = io.WriteString(w, rejectBody)
}

// dispatch forwards env in the background. Its outcome is only logged.
func (rc *Receiver) dispatch(env domain.RelayEnvelope) {
	rc.mu.Lock()
	if rc.draining {
		rc.mu.Unlock()
		metrics.Forwards.WithLabelValues("failed").Inc()
		rc.logger.Error("relay dropped", "reason", "shutting down", "receivedAt", env.Meta.ReceivedAt)
		return
	}
	rc.inflight.Add(1)
	rc.mu.Unlock()

	go func() {
		defer rc.inflight.Done()
		start := time.Now()
		err := rc.forwarder.Forward(rc.baseCtx, env)
		metrics.ForwardDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.Forwards.WithLabelValues("failed").Inc()
			rc.logger.Error("relay failed", "err", err, "receivedAt", env.Meta.ReceivedAt)
			return
		}
		metrics.Forwards.WithLabelValues("ok").Inc()
		rc.logger.Info("relay ok", "receivedAt", env.Meta.ReceivedAt)
	}()
}

// Drain stops new forwards and waits for in-flight ones. When ctx expires
// first, outstanding forwards are cancelled and abandoned.
func (rc *Receiver) Drain(ctx context.Context) error {
	rc.mu.Lock()
	rc.draining = true
	rc.mu.Unlock()

	done := make(chan struct{})
	go func() {
		rc.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		rc.cancel()
		return nil
	case <-ctx.Done():
		rc.cancel()
		return ctx.Err()
	}
}
