package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/signdesk/internal/core/domain"
	"github.com/custodia-labs/signdesk/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.HandoffStore = (*HandoffStore)(nil)

const handoffPrefix = "signdesk:handoff:"

// HandoffRetention keeps a hand-off readable after its link expires so a
// primary device can still backfill a late completion.
const HandoffRetention = time.Hour

// HandoffStore implements driven.HandoffStore using Redis
type HandoffStore struct {
	client *redis.Client
}

// NewHandoffStore creates a new Redis-backed HandoffStore
func NewHandoffStore(client *redis.Client) *HandoffStore {
	return &HandoffStore{client: client}
}

// Save stores a hand-off until ExpiresAt plus HandoffRetention
func (s *HandoffStore) Save(ctx context.Context, h *domain.Handoff) error {
	ttl := time.Until(h.ExpiresAt) + HandoffRetention
	if ttl <= 0 {
		return nil
	}

	data, err := json.Marshal(h)
	if err != nil {
		return fmt.Errorf("failed to marshal handoff: %w", err)
	}
	if err := s.client.Set(ctx, handoffPrefix+h.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save handoff: %w", err)
	}
	return nil
}

// Get retrieves a hand-off by ID
func (s *HandoffStore) Get(ctx context.Context, id string) (*domain.Handoff, error) {
	data, err := s.client.Get(ctx, handoffPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get handoff: %w", err)
	}

	var h domain.Handoff
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to unmarshal handoff: %w", err)
	}
	return &h, nil
}

// completeScript flips status in place and keeps the remaining TTL.
// Returns 1 on success, 0 when missing, -1 when already completed.
var completeScript = redis.NewScript(`
	local raw = redis.call("get", KEYS[1])
	if not raw then
		return 0
	end
	local h = cjson.decode(raw)
	if h["status"] == ARGV[1] then
		return -1
	end
	h["status"] = ARGV[1]
	h["signed_document_id"] = ARGV[2]
	local encoded = cjson.encode(h)
	local ttl = redis.call("pttl", KEYS[1])
	if ttl > 0 then
		redis.call("set", KEYS[1], encoded, "PX", ttl)
	else
		redis.call("set", KEYS[1], encoded)
	end
	return 1
`)

// MarkCompleted atomically records the completing document
func (s *HandoffStore) MarkCompleted(ctx context.Context, id, documentID string) error {
	res, err := completeScript.Run(ctx, s.client, []string{handoffPrefix + id},
		string(domain.HandoffCompleted), documentID).Int64()
	if err != nil {
		return fmt.Errorf("failed to complete handoff: %w", err)
	}
	switch res {
	case 0:
		return domain.ErrNotFound
	case -1:
		return domain.ErrHandoffConflict
	}
	return nil
}
