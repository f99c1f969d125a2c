package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/joseph-ayodele/jobtracker/internal/identity"
	"github.com/joseph-ayodele/jobtracker/internal/notify"
)

// Holder is the process-wide session state. It keeps one subscription to identity
// changes and remembers when each identity's sessions were last invalidated.
type Holder struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
	done    chan struct{}
	logger  *slog.Logger
}

func NewHolder(logger *slog.Logger) *Holder {
	return &Holder{revoked: make(map[string]time.Time), done: make(chan struct{}), logger: logger}
}

// Start subscribes to b and applies identity events until ctx is done. It must be
// called at most once.
func (h *Holder) Start(ctx context.Context, b notify.Broker) error {
	events, err := b.Subscribe(ctx)
	if err != nil {
		close(h.done)
		return err
	}
	go func() {
		defer close(h.done)
		for ev := range events {
			h.Apply(ev)
		}
	}()
	return nil
}

// Done is closed once the subscription loop has exited.
func (h *Holder) Done() <-chan struct{} {
	return h.done
}

// Apply records the effect of one change event.
func (h *Holder) Apply(ev notify.Event) {
	if ev.Topic != notify.TopicIdentities || ev.Key == "" {
		return
	}
	switch ev.Op {
	case notify.OpPasswordChanged, notify.OpDelete:
		h.Revoke(ev.Key, ev.At)
	}
}

// Revoke invalidates every session of identityID issued before at.
func (h *Holder) Revoke(identityID string, at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.revoked[identityID]; ok && prev.After(at) {
		return
	}
	h.revoked[identityID] = at
	h.logger.Info("sessions revoked", "identity_id", identityID, "at", at)
}

// Revoked reports whether claims were issued before the subject's last revocation.
// Tokens without iat_ns only have second precision, so they compare at that grain.
func (h *Holder) Revoked(claims *identity.Claims) bool {
	if h == nil || claims == nil {
		return false
	}
	h.mu.RLock()
	at, ok := h.revoked[claims.Subject]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	if claims.IssuedNanos == 0 {
		at = at.Truncate(time.Second)
	}
	return claims.IssuedTime().Before(at)
}
