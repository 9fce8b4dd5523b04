package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ProgressRepository mirrors live generation progress into Redis so pollers
// see phase transitions without hitting Postgres.
type ProgressRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressRepository constructs the repository. A nil client disables the
// mirror: writes become no-ops and reads miss.
func NewProgressRepository(client *redis.Client, ttl time.Duration) *ProgressRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ProgressRepository{client: client, ttl: ttl}
}

// Progress is the live state of one generation job.
type Progress struct {
	Status    string    `json:"status"`
	Phase     string    `json:"phase"`
	Percent   int       `json:"percent"`
	UpdatedAt time.Time `json:"updated_at"`
}

func progressKey(jobID string) string {
	return "timetable_generation:" + jobID
}

// Set writes the current phase and percentage for a job.
func (r *ProgressRepository) Set(ctx context.Context, jobID string, p Progress) error {
	if r.client == nil {
		return nil
	}
	key := progressKey(jobID)
	fields := map[string]interface{}{
		"status":     p.Status,
		"phase":      p.Phase,
		"percent":    p.Percent,
		"updated_at": p.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if err := r.client.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("redis hset %s: %w", key, err)
	}
	if err := r.client.Expire(ctx, key, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis expire %s: %w", key, err)
	}
	return nil
}

// Get reads the live state of a job. The boolean reports whether the mirror
// held an entry.
func (r *ProgressRepository) Get(ctx context.Context, jobID string) (Progress, bool, error) {
	var p Progress
	if r.client == nil {
		return p, false, nil
	}
	key := progressKey(jobID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return p, false, fmt.Errorf("redis hgetall %s: %w", key, err)
	}
	if len(fields) == 0 {
		return p, false, nil
	}
	p.Status = fields["status"]
	p.Phase = fields["phase"]
	if raw, ok := fields["percent"]; ok {
		if v, err := strconv.Atoi(raw); err == nil {
			p.Percent = v
		}
	}
	if raw, ok := fields["updated_at"]; ok {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			p.UpdatedAt = t
		}
	}
	return p, true, nil
}

// Delete drops the mirror entry of a job.
func (r *ProgressRepository) Delete(ctx context.Context, jobID string) error {
	if r.client == nil {
		return nil
	}
	if err := r.client.Del(ctx, progressKey(jobID)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", progressKey(jobID), err)
	}
	return nil
}
