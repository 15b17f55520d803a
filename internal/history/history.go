// internal/history/history.go
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "pos-assistant/internal/common/errors"
	"pos-assistant/internal/common/logger"
	"pos-assistant/internal/models"
)

// Store keeps per-tenant conversation history in Redis so a follow-up
// like "y de las doradas?" classifies with context. Each tenant's
// history is a capped list with a TTL; losing it only degrades
// classification quality, never correctness.
type Store struct {
	client   *redis.Client
	ttl      time.Duration
	maxTurns int
	log      logger.Logger
}

func NewStore(client *redis.Client, ttl time.Duration, maxTurns int, log logger.Logger) *Store {
	return &Store{
		client:   client,
		ttl:      ttl,
		maxTurns: maxTurns,
		log:      log.With(map[string]interface{}{"component": "history"}),
	}
}

func key(tenantID string) string {
	return fmt.Sprintf("history:%s", tenantID)
}

// Append pushes a turn and trims the list to the configured cap.
func (s *Store) Append(ctx context.Context, tenantID string, turn models.Turn) error {
	payload, err := json.Marshal(turn)
	if err != nil {
		return apperrors.NewDataAccessError(err)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key(tenantID), payload)
	pipe.LTrim(ctx, key(tenantID), int64(-s.maxTurns), -1)
	pipe.Expire(ctx, key(tenantID), s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperrors.NewDataAccessError(err)
	}
	return nil
}

// Recent returns up to maxTurns turns, oldest first.
func (s *Store) Recent(ctx context.Context, tenantID string) ([]models.Turn, error) {
	entries, err := s.client.LRange(ctx, key(tenantID), 0, -1).Result()
	if err != nil {
		return nil, apperrors.NewDataAccessError(err)
	}

	turns := make([]models.Turn, 0, len(entries))
	for _, entry := range entries {
		var turn models.Turn
		if err := json.Unmarshal([]byte(entry), &turn); err != nil {
			// A corrupt entry is dropped, not fatal.
			s.log.Warn("Skipping corrupt history entry", map[string]interface{}{
				"tenant": tenantID,
			})
			continue
		}
		turns = append(turns, turn)
	}
	return turns, nil
}

// Clear removes a tenant's history.
func (s *Store) Clear(ctx context.Context, tenantID string) error {
	if err := s.client.Del(ctx, key(tenantID)).Err(); err != nil {
		return apperrors.NewDataAccessError(err)
	}
	return nil
}
