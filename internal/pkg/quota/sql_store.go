package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/NoteFox/app/models"
	"github.com/ManuelReschke/NoteFox/internal/pkg/entitlements"
	"github.com/ManuelReschke/NoteFox/internal/pkg/metrics"
)

const defaultMaxAttempts = 16

// SQLStore keeps counters in the usage_limits table. Every write is a single
// statement conditioned on the version read before it, so two concurrent
// callers can never both consume the same remaining slot.
type SQLStore struct {
	db          *gorm.DB
	maxAttempts int
	metrics     *metrics.Metrics
}

type SQLStoreOption func(*SQLStore)

// WithMaxAttempts bounds how often a lost conditional update is retried.
func WithMaxAttempts(n int) SQLStoreOption {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

func WithSQLMetrics(m *metrics.Metrics) SQLStoreOption {
	return func(s *SQLStore) { s.metrics = m }
}

func NewSQLStore(db *gorm.DB, opts ...SQLStoreOption) *SQLStore {
	s := &SQLStore{db: db, maxAttempts: defaultMaxAttempts}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *SQLStore) Consume(ctx context.Context, userID string, feature entitlements.Feature, window time.Time, limit entitlements.Limit) (Decision, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Decision{}, err
		}

		rec, err := s.get(ctx, userID, feature)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			d := Decision{Allowed: limit.Allows(0)}
			if d.Allowed {
				d.UsedCount = 1
			}
			created, err := s.insert(ctx, &models.UsageLimit{
				UserID:    userID,
				Feature:   string(feature),
				UsedCount: d.UsedCount,
				ResetAt:   window,
				Version:   1,
			})
			if err != nil {
				return Decision{}, err
			}
			if !created {
				s.metrics.StoreConflict("sql")
				continue
			}
			return d, nil
		}
		if err != nil {
			return Decision{}, err
		}

		used := rec.UsedCount
		rolled := expired(rec.ResetAt, window)
		if rolled {
			used = 0
		}

		if !limit.Allows(used) {
			if rolled {
				ok, err := s.swap(ctx, rec, 0, window)
				if err != nil {
					return Decision{}, err
				}
				if !ok {
					s.metrics.StoreConflict("sql")
					continue
				}
			}
			return Decision{Allowed: false, UsedCount: used}, nil
		}

		ok, err := s.swap(ctx, rec, used+1, window)
		if err != nil {
			return Decision{}, err
		}
		if !ok {
			s.metrics.StoreConflict("sql")
			continue
		}
		return Decision{Allowed: true, UsedCount: used + 1}, nil
	}
	return Decision{}, fmt.Errorf("%w after %d attempts", ErrContention, s.maxAttempts)
}

func (s *SQLStore) ResetAll(ctx context.Context, userID string, resetAt time.Time) error {
	return s.db.WithContext(ctx).
		Model(&models.UsageLimit{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"used_count": 0,
			"reset_at":   civilDate(resetAt),
			"version":    gorm.Expr("version + 1"),
		}).Error
}

func (s *SQLStore) List(ctx context.Context, userID string) ([]Usage, error) {
	var rows []models.UsageLimit
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("feature").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]Usage, 0, len(rows))
	for _, r := range rows {
		out = append(out, Usage{
			Feature:   entitlements.Feature(r.Feature),
			UsedCount: r.UsedCount,
			ResetAt:   civilDate(r.ResetAt),
		})
	}
	return out, nil
}

func (s *SQLStore) get(ctx context.Context, userID string, feature entitlements.Feature) (*models.UsageLimit, error) {
	var rec models.UsageLimit
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND feature = ?", userID, string(feature)).
		Take(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// insert creates the first record of a key. It reports false when another
// caller created it first.
func (s *SQLStore) insert(ctx context.Context, rec *models.UsageLimit) (bool, error) {
	tx := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(rec)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// swap writes the next state only if nobody wrote the record since it was read.
func (s *SQLStore) swap(ctx context.Context, prev *models.UsageLimit, used int64, window time.Time) (bool, error) {
	tx := s.db.WithContext(ctx).
		Model(&models.UsageLimit{}).
		Where("user_id = ? AND feature = ? AND version = ?", prev.UserID, prev.Feature, prev.Version).
		Updates(map[string]interface{}{
			"used_count": used,
			"reset_at":   window,
			"version":    prev.Version + 1,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}
