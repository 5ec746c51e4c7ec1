package storage

import (
	"fmt"
	"log/slog"
	"time"
)

// LoginSessionState is the persisted snapshot of a terminal login
// session. The in-memory store garbage-collects terminal sessions
// after a grace period; the snapshot keeps them pollable until its
// TTL runs out, including across restarts.
type LoginSessionState struct {
	SessionID    string
	Platform     string
	Status       string
	LoginURL     string
	Cookies      string // serialized cookie records
	ErrorMessage string
	CreatedAt    time.Time
	Deadline     time.Time
}

// LoginRepository handles terminal-snapshot persistence in Redis
type LoginRepository struct {
	redis *RedisClient
	ttl   time.Duration
}

// NewLoginRepository creates a login snapshot repository
func NewLoginRepository(redisClient *RedisClient, ttl time.Duration) *LoginRepository {
	return &LoginRepository{
		redis: redisClient,
		ttl:   ttl,
	}
}

func loginKey(sessionID string) string {
	return fmt.Sprintf("login:%s", sessionID)
}

// SaveTerminal persists a terminal session snapshot as a hash with a
// TTL. Cookies go to their own key so the metadata hash stays small.
func (r *LoginRepository) SaveTerminal(state *LoginSessionState) error {
	key := loginKey(state.SessionID)

	fields := map[string]interface{}{
		"session_id":    state.SessionID,
		"platform":      state.Platform,
		"status":        state.Status,
		"login_url":     state.LoginURL,
		"error_message": state.ErrorMessage,
		"created_at":    state.CreatedAt.Format(time.RFC3339),
		"deadline":      state.Deadline.Format(time.RFC3339),
	}

	if err := r.redis.client.HSet(r.redis.ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("failed to save login snapshot: %w", err)
	}

	if err := r.redis.client.Expire(r.redis.ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set TTL: %w", err)
	}

	if state.Cookies != "" {
		cookieKey := key + ":cookies"
		if err := r.redis.client.Set(r.redis.ctx, cookieKey, state.Cookies, r.ttl).Err(); err != nil {
			slog.Warn("failed to save snapshot cookies", "error", err)
		}
	}

	slog.Debug("login snapshot saved", "session_id", state.SessionID, "status", state.Status)
	return nil
}

// Get retrieves a terminal session snapshot
func (r *LoginRepository) Get(sessionID string) (*LoginSessionState, error) {
	key := loginKey(sessionID)

	data, err := r.redis.client.HGetAll(r.redis.ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get login snapshot: %w", err)
	}

	// An empty map means the key does not exist
	if len(data) == 0 {
		return nil, fmt.Errorf("login snapshot not found: %s", sessionID)
	}

	state := &LoginSessionState{
		SessionID:    data["session_id"],
		Platform:     data["platform"],
		Status:       data["status"],
		LoginURL:     data["login_url"],
		ErrorMessage: data["error_message"],
	}

	if createdAt, err := time.Parse(time.RFC3339, data["created_at"]); err == nil {
		state.CreatedAt = createdAt
	}
	if deadline, err := time.Parse(time.RFC3339, data["deadline"]); err == nil {
		state.Deadline = deadline
	}

	// Cookies are optional; absence is not an error
	if cookies, err := r.redis.client.Get(r.redis.ctx, key+":cookies").Result(); err == nil {
		state.Cookies = cookies
	}

	return state, nil
}

// Delete removes a snapshot and its cookie payload
func (r *LoginRepository) Delete(sessionID string) error {
	key := loginKey(sessionID)

	if err := r.redis.client.Del(r.redis.ctx, key, key+":cookies").Err(); err != nil {
		return fmt.Errorf("failed to delete login snapshot: %w", err)
	}

	return nil
}
