package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"unsplash-auth/internal/auth/engine"
	"unsplash-auth/internal/utils"

	"github.com/redis/go-redis/v9"
)

const (
	stateKeyPrefix  = "oauth_state:"
	defaultStateTTL = 5 * time.Minute
)

// RedisStateStore keeps OAuth state server-side. The state value is the
// only thing that travels through the browser.
type RedisStateStore struct {
	client redis.UniversalClient
	ttl    time.Duration
}

var _ engine.StateStore = (*RedisStateStore)(nil)

func NewRedisStateStore(client redis.UniversalClient, ttl time.Duration) *RedisStateStore {
	if ttl <= 0 {
		ttl = defaultStateTTL
	}
	return &RedisStateStore{client: client, ttl: ttl}
}

func (s *RedisStateStore) Store(_ http.ResponseWriter, r *http.Request, data engine.StateData) (string, error) {
	state := utils.RandomString(32)

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("oauth state: marshal: %w", err)
	}

	if err := s.client.Set(r.Context(), stateKeyPrefix+state, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("oauth state: store: %w", err)
	}

	return state, nil
}

// Verify consumes the state atomically so a callback cannot be replayed.
func (s *RedisStateStore) Verify(_ http.ResponseWriter, r *http.Request, state string) (engine.StateData, error) {
	if state == "" {
		return engine.StateData{}, engine.ErrInvalidState
	}

	payload, err := s.client.GetDel(r.Context(), stateKeyPrefix+state).Bytes()
	if errors.Is(err, redis.Nil) {
		return engine.StateData{}, engine.ErrInvalidState
	}
	if err != nil {
		return engine.StateData{}, fmt.Errorf("oauth state: load: %w", err)
	}

	var data engine.StateData
	if err := json.Unmarshal(payload, &data); err != nil {
		return engine.StateData{}, fmt.Errorf("oauth state: unmarshal: %w", err)
	}

	return data, nil
}
