package bot

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

const confirmTTL = 60 * time.Second

type actionKind string

const (
	actionDeleteGame      actionKind = "delete_game"
	actionSetAlertChannel actionKind = "set_channel"
)

// pendingAction is a destructive admin action waiting for Confirm
type pendingAction struct {
	Kind       actionKind
	TargetID   string
	TargetName string
	UserID     string
	expiresAt  time.Time
}

// confirmations holds one-shot tokens for pending actions
type confirmations struct {
	mu      sync.Mutex
	ttl     time.Duration
	pending map[string]pendingAction
	now     func() time.Time
}

func newConfirmations(ttl time.Duration) *confirmations {
	return &confirmations{
		ttl:     ttl,
		pending: make(map[string]pendingAction),
		now:     time.Now,
	}
}

// Add stores an action and returns its token
func (c *confirmations) Add(a pendingAction) string {
	token := uuid.NewString()
	a.expiresAt = c.now().Add(c.ttl)

	c.mu.Lock()
	c.pending[token] = a
	c.mu.Unlock()
	return token
}

// Take removes and returns the action for token. Only the user who asked
// may confirm; a token of someone else is left in place.
func (c *confirmations) Take(token, userID string) (pendingAction, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	a, ok := c.pending[token]
	if !ok {
		return pendingAction{}, false
	}
	if c.now().After(a.expiresAt) {
		delete(c.pending, token)
		return pendingAction{}, false
	}
	if a.UserID != userID {
		return pendingAction{}, false
	}
	delete(c.pending, token)
	return a, true
}

// PurgeExpired drops tokens nobody answered
func (c *confirmations) PurgeExpired() {
	now := c.now()
	c.mu.Lock()
	for token, a := range c.pending {
		if now.After(a.expiresAt) {
			delete(c.pending, token)
		}
	}
	c.mu.Unlock()
}

// StartJanitor purges expired tokens every interval until ctx is done
func (c *confirmations) StartJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.PurgeExpired()
			case <-ctx.Done():
				return
			}
		}
	}()
}
