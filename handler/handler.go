package handler

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"line-memo-relay/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	ackBody           = "OK"
	maxBodyBytes      = 1 << 20
)

// WebhookProcessor handles one relay envelope body.
type WebhookProcessor interface {
	Handle(ctx context.Context, body []byte) error
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

// Handler is the backend entry point. It acknowledges every request with 200
// whatever happens inside: the edge already answered the platform and cannot
// act on a failure here.
type Handler struct {
	processor WebhookProcessor
	logger    *slog.Logger
}

func NewHandler(processor WebhookProcessor, logger *slog.Logger) (*Handler, error) {
	if processor == nil {
		return nil, errors.New("handler: processor must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{processor: processor, logger: logger}, nil
}

// Handle serves an API Gateway proxy request.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := h.logger.With("correlationId", corrID)

	body := []byte(req.Body)
	if req.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(req.Body)
		if err != nil {
			logger.Error("malformed request body", "err", err, "body", req.Body)
			return ack(corrID), nil
		}
		body = decoded
	}

	h.process(ctx, logger, body)
	return ack(corrID), nil
}

func (h *Handler) process(ctx context.Context, logger *slog.Logger, body []byte) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic while handling delivery", "panic", r, "body", string(body))
		}
	}()
	logOutcome(logger, h.processor.Handle(ctx, body), body)
}

func logOutcome(logger *slog.Logger, err error, body []byte) {
	if err == nil {
		logger.Info("delivery handled")
		return
	}

	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.Error("delivery failed", "err", err, "body", string(body))
		return
	}

	switch ucErr.Code {
	case usecase.ErrorRelayAuth:
		logger.Warn("relay signature mismatch, delivery dropped", "reason", ucErr.Reason)
	case usecase.ErrorUnsupportedEvent:
		logger.Info("unsupported event ignored", "reason", ucErr.Reason)
	case usecase.ErrorMalformedEvent:
		logger.Error("malformed delivery", "reason", ucErr.Reason, "err", err, "body", string(body))
	case usecase.ErrorUpstream:
		attrs := []any{"reason", ucErr.Reason, "err", err}
		var sc httpStatusCoder
		if errors.As(err, &sc) {
			attrs = append(attrs, "status", sc.HTTPStatusCode())
		}
		logger.Error("platform API call failed", attrs...)
	default:
		logger.Error("delivery failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", err)
	}
}

// ServeHTTP adapts the Lambda handler to net/http for running outside Lambda.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.logger.Error("read request body", "err", err)
	}
	headers := make(map[string]string, len(r.Header))
	for k := range r.Header {
		headers[k] = r.Header.Get(k)
	}

	resp, _ := h.Handle(r.Context(), events.APIGatewayProxyRequest{
		HTTPMethod: r.Method,
		Path:       r.URL.Path,
		Headers:    headers,
		Body:       string(body),
	})
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.WriteString(w, resp.Body)
}

func ack(corrID string) events.APIGatewayProxyResponse {
	return events.APIGatewayProxyResponse{
		StatusCode: http.StatusOK,
		Headers: map[string]string{
			"Content-Type":    "text/plain; charset=utf-8",
			correlationHeader: corrID,
		},
		Body: ackBody,
	}
}

func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
