package cache

import (
	"context"
	"time"
)

// OAuthState is what the authorization redirect has to remember until the
// provider calls back.
type OAuthState struct {
	Provider     string `json:"provider"`
	CodeVerifier string `json:"codeVerifier"`
	// LinkUserID is set when the flow links a provider to a signed-in user.
	LinkUserID string    `json:"linkUserId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// StateStore keeps OAuth states in redis; each one can be consumed once.
type StateStore struct {
	c   *Cache
	ttl time.Duration
}

func NewStateStore(c *Cache, ttl time.Duration) *StateStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &StateStore{c: c, ttl: ttl}
}

func stateKey(state string) string { return "oauth:state:" + state }

func (s *StateStore) Save(ctx context.Context, state string, v OAuthState) error {
	return PutJSON(s.c, ctx, stateKey(state), &v, s.ttl)
}

// Consume returns ErrMiss for unknown, expired or already used states.
func (s *StateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	return TakeJSON[OAuthState](s.c, ctx, stateKey(state))
}
