// Package relay opens the envelopes the edge receiver forwards to the
// backend: it checks the relay signature over the original bytes and decodes
// the platform's event batch.
package relay

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"line-memo-relay/internal/domain"
	"line-memo-relay/internal/signature"
)

var (
	ErrMalformedEnvelope = errors.New("relay: malformed envelope")
	ErrSignatureMismatch = errors.New("relay: signature mismatch")
	ErrMalformedEvent    = errors.New("relay: malformed event batch")
	ErrEmptyBatch        = errors.New("relay: empty event batch")
)

// Delivery is one opened relay envelope.
type Delivery struct {
	Event      domain.WebhookEvent
	BatchSize  int
	ReceivedAt time.Time
	Raw        []byte
}

// Seal builds the envelope the edge sends for raw, signed with relaySecret.
func Seal(relaySecret, raw []byte, receivedAt time.Time) domain.RelayEnvelope {
	return domain.RelayEnvelope{
		Raw: base64.StdEncoding.EncodeToString(raw),
		Meta: domain.RelayMeta{
			RelaySignature: signature.Sign(relaySecret, raw),
			ReceivedAt:     receivedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		},
	}
}

// DecodeEnvelope parses the JSON body the backend receives.
func DecodeEnvelope(body []byte) (domain.RelayEnvelope, error) {
	var env domain.RelayEnvelope
	if err := json.Unmarshal(bytes.TrimSpace(body), &env); err != nil {
		return domain.RelayEnvelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.Raw == "" || env.Meta.RelaySignature == "" {
		return domain.RelayEnvelope{}, fmt.Errorf("%w: raw and meta.relaySignature are required", ErrMalformedEnvelope)
	}
	return env, nil
}

// Verifier checks relay signatures with a single shared secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for relaySecret.
func NewVerifier(relaySecret string) (*Verifier, error) {
	if relaySecret == "" {
		return nil, errors.New("relay: secret must not be empty")
	}
	return &Verifier{secret: []byte(relaySecret)}, nil
}

// Open verifies env and returns the first event of the batch it carries.
// The signature is checked over the decoded bytes, never a re-serialized form.
func (v *Verifier) Open(env domain.RelayEnvelope) (Delivery, error) {
	raw, err := base64.StdEncoding.DecodeString(env.Raw)
	if err != nil {
		return Delivery{}, fmt.Errorf("%w: raw is not base64: %v", ErrMalformedEnvelope, err)
	}
	if !signature.Verify(v.secret, raw, env.Meta.RelaySignature) {
		return Delivery{}, ErrSignatureMismatch
	}

	var batch domain.WebhookBatch
	if err := json.Unmarshal(raw, &batch); err != nil {
		return Delivery{Raw: raw}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	d := Delivery{BatchSize: len(batch.Events), Raw: raw}
	if ts, err := time.Parse(time.RFC3339Nano, env.Meta.ReceivedAt); err == nil {
		d.ReceivedAt = ts
	}
	if len(batch.Events) == 0 {
		return d, ErrEmptyBatch
	}
	d.Event = batch.Events[0]
	return d, nil
}
