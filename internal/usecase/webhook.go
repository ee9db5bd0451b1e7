package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"line-memo-relay/internal/domain"
	"line-memo-relay/internal/relay"
)

const defaultLoadingSeconds = 15

// EnvelopeOpener verifies a relay envelope and yields its first event.
type EnvelopeOpener interface {
	Open(env domain.RelayEnvelope) (relay.Delivery, error)
}

// Responder computes the reply for one user message.
type Responder interface {
	Respond(ctx context.Context, userID, text string) (string, error)
}

// Replier delivers replies and the typing indicator through the platform.
type Replier interface {
	Reply(ctx context.Context, replyToken, text string) error
	ShowLoading(ctx context.Context, chatID string, seconds int) error
}

// WebhookService handles one relayed delivery end to end.
type WebhookService struct {
	opener         EnvelopeOpener
	engine         Responder
	replier        Replier
	loadingSeconds int
	locks          *userLocks
	logger         *slog.Logger
}

func NewWebhookService(opener EnvelopeOpener, engine Responder, replier Replier, loadingSeconds int, logger *slog.Logger) (*WebhookService, error) {
	if opener == nil {
		return nil, errors.New("usecase: envelope opener must not be nil")
	}
	if engine == nil {
		return nil, errors.New("usecase: responder must not be nil")
	}
	if replier == nil {
		return nil, errors.New("usecase: replier must not be nil")
	}
	if loadingSeconds <= 0 {
		loadingSeconds = defaultLoadingSeconds
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookService{
		opener:         opener,
		engine:         engine,
		replier:        replier,
		loadingSeconds: loadingSeconds,
		locks:          newUserLocks(),
		logger:         logger,
	}, nil
}

// Handle verifies and processes one relay envelope body. A nil return means
// the delivery was fully handled or intentionally ignored; errors are
// *Error values for the caller to log. Nothing here changes the
// acknowledgment the caller sends.
func (s *WebhookService) Handle(ctx context.Context, body []byte) error {
	env, err := relay.DecodeEnvelope(body)
	if err != nil {
		return newError(ErrorMalformedEvent, "envelope_decode_error", err)
	}

	d, err := s.opener.Open(env)
	switch {
	case err == nil:
	case errors.Is(err, relay.ErrSignatureMismatch):
		return newError(ErrorRelayAuth, "relay_signature_mismatch", err)
	case errors.Is(err, relay.ErrEmptyBatch):
		s.logger.Debug("empty event batch acknowledged")
		return nil
	default:
		return newError(ErrorMalformedEvent, "event_decode_error", err)
	}

	if d.BatchSize > 1 {
		s.logger.Warn("delivery batch has more than one event, processing the first only",
			"batchSize", d.BatchSize, "dropped", d.BatchSize-1)
	}

	ev := d.Event
	if !ev.IsText() {
		return newError(ErrorUnsupportedEvent, "non_text_event:"+ev.Type, nil)
	}
	userID := strings.TrimSpace(ev.Source.UserID)
	if userID == "" {
		return newError(ErrorMalformedEvent, "missing_user_id", nil)
	}

	unlock := s.locks.lock(userID)
	defer unlock()

	if err := s.replier.ShowLoading(ctx, userID, s.loadingSeconds); err != nil {
		s.logger.Warn("loading indicator failed", "userId", userID, "err", err)
	}

	reply, err := s.engine.Respond(ctx, userID, ev.Message.Text)
	if err != nil {
		var ucErr *Error
		if errors.As(err, &ucErr) {
			return ucErr
		}
		return newError(ErrorInternal, "respond_error", err)
	}

	// State changes above stay in place even when delivery fails.
	if err := s.replier.Reply(ctx, ev.ReplyToken, reply); err != nil {
		return newError(ErrorUpstream, "reply_error", err)
	}
	return nil
}
