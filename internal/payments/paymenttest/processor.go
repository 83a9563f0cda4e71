// Package paymenttest provides an in-memory payments.Processor for tests.
package paymenttest

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ariefcatur/go-shop-checkout/internal/apperr"
	"github.com/ariefcatur/go-shop-checkout/internal/payments"
)

type session struct {
	paid     bool
	intentID string
	items    []payments.LineItem
	metadata map[string]string
}

// Processor records sessions and signs webhook payloads with HMAC-SHA256.
type Processor struct {
	Secret      string
	CreateErr   error
	RetrieveErr error

	mu       sync.Mutex
	seq      int
	sessions map[string]*session
}

func New(secret string) *Processor {
	return &Processor{Secret: secret, sessions: map[string]*session{}}
}

func (p *Processor) CreateCheckoutSession(_ context.Context, items []payments.LineItem, metadata map[string]string) (payments.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.CreateErr != nil {
		return payments.Session{}, p.CreateErr
	}
	p.seq++
	id := fmt.Sprintf("cs_test_%d", p.seq)
	p.sessions[id] = &session{items: items, metadata: metadata}
	return payments.Session{ID: id, URL: "https://pay.example.test/" + id}, nil
}

func (p *Processor) RetrieveSession(_ context.Context, id string) (payments.SessionStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RetrieveErr != nil {
		return payments.SessionStatus{}, p.RetrieveErr
	}
	s, ok := p.sessions[id]
	if !ok {
		return payments.SessionStatus{}, fmt.Errorf("no such session %s", id)
	}
	return payments.SessionStatus{ID: id, Paid: s.paid, PaymentIntentID: s.intentID}, nil
}

// Pay marks a session as paid by the given intent.
func (p *Processor) Pay(sessionID, intentID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[sessionID]; ok {
		s.paid = true
		s.intentID = intentID
	}
}

// Metadata returns the metadata a session was opened with.
func (p *Processor) Metadata(sessionID string) map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.sessions[sessionID]; ok {
		return s.metadata
	}
	return nil
}

// Sessions returns the number of sessions opened.
func (p *Processor) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

type wireEvent struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	IntentID  string `json:"intent_id,omitempty"`
	OrderID   string `json:"order_id,omitempty"`
}

// Payload encodes ev and returns it with a valid signature.
func (p *Processor) Payload(ev payments.Event) ([]byte, string) {
	b, _ := json.Marshal(wireEvent(ev))
	return b, p.Sign(b)
}

func (p *Processor) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, []byte(p.Secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (p *Processor) VerifyWebhook(payload []byte, signature string) (payments.Event, error) {
	if !hmac.Equal([]byte(signature), []byte(p.Sign(payload))) {
		return payments.Event{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidSignature, "invalid signature")
	}
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil || w.Type == "" {
		return payments.Event{}, apperr.New(apperr.KindValidation, apperr.CodeInvalidPayload, "invalid payload")
	}
	return payments.Event(w), nil
}
