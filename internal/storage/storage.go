// Package storage is the versioned JSON object store: every artifact the
// pipeline persists is an immutable path-addressed envelope carrying
// ttl_days and schema_version, with postgres as the backing table and redis
// as a short-lived read cache.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrWrite marks a failed persist. Fatal for the run that triggered it.
var ErrWrite = errors.New("storage write failed")

const listCacheTTL = 5 * time.Minute

// StoredObject is one persisted artifact. Rows are never updated; the TTL
// sweep is the only deleter.
type StoredObject struct {
	ID            uint           `gorm:"primaryKey" json:"-"`
	Path          string         `gorm:"size:512;uniqueIndex" json:"path"`
	Payload       datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	CreatedAt     time.Time      `gorm:"index" json:"created_at"`
	TTLDays       int            `json:"ttl_days"`
	SchemaVersion int            `json:"schema_version"`
}

// Object is the write-side shape before marshalling.
type Object struct {
	Path          string
	Payload       any
	TTLDays       int
	SchemaVersion int
}

// ObjectMeta is what list endpoints expose.
type ObjectMeta struct {
	Path          string    `json:"path"`
	Size          int       `json:"size"`
	CreatedAt     time.Time `json:"created_at"`
	TTLDays       int       `json:"ttl_days"`
	SchemaVersion int       `json:"schema_version"`
}

type Store struct {
	DB    *gorm.DB
	Redis *redis.Client
}

func NewStore(dsn, redisAddr string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&StoredObject{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("warn: redis ping failed: %v", err)
	}

	return &Store{DB: db, Redis: rdb}, nil
}

// PutJSON persists one object. Existing paths are left untouched: objects
// are immutable once written.
func (s *Store) PutJSON(ctx context.Context, obj Object) error {
	return s.ArchiveRun(ctx, []Object{obj})
}

// ArchiveRun persists a whole run's objects in one transaction: either
// every artifact of the run lands or none do, so no partially-written
// cluster set is ever visible.
func (s *Store) ArchiveRun(ctx context.Context, objects []Object) error {
	rows := make([]StoredObject, 0, len(objects))
	now := time.Now().UTC()
	for _, obj := range objects {
		payload, err := json.Marshal(obj.Payload)
		if err != nil {
			return fmt.Errorf("%w: marshal %s: %v", ErrWrite, obj.Path, err)
		}
		rows = append(rows, StoredObject{
			Path:          obj.Path,
			Payload:       datatypes.JSON(payload),
			CreatedAt:     now,
			TTLDays:       obj.TTLDays,
			SchemaVersion: obj.SchemaVersion,
		})
	}
	if len(rows) == 0 {
		return nil
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "path"}},
			DoNothing: true,
		}).Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrWrite, err)
	}
	return nil
}

// List returns object metadata under a prefix, newest first, with a short
// redis cache in front of the table.
func (s *Store) List(ctx context.Context, prefix string, limit int) ([]ObjectMeta, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	cacheKey := fmt.Sprintf("store:list:%s:%d", prefix, limit)
	if s.Redis != nil {
		if bs, err := s.Redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var cached []ObjectMeta
			if err := json.Unmarshal(bs, &cached); err == nil {
				return cached, nil
			}
		}
	}

	var rows []StoredObject
	if err := s.DB.WithContext(ctx).
		Where("path LIKE ?", prefix+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}

	metas := make([]ObjectMeta, 0, len(rows))
	for _, row := range rows {
		metas = append(metas, ObjectMeta{
			Path:          row.Path,
			Size:          len(row.Payload),
			CreatedAt:     row.CreatedAt,
			TTLDays:       row.TTLDays,
			SchemaVersion: row.SchemaVersion,
		})
	}

	if s.Redis != nil && len(metas) > 0 {
		if bs, err := json.Marshal(metas); err == nil {
			_ = s.Redis.Set(ctx, cacheKey, bs, listCacheTTL).Err()
		}
	}
	return metas, nil
}

// GetPayloads returns the raw JSON payloads under a prefix, newest first.
func (s *Store) GetPayloads(ctx context.Context, prefix string, limit int) ([]json.RawMessage, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	var rows []StoredObject
	if err := s.DB.WithContext(ctx).
		Where("path LIKE ?", prefix+"%").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	payloads := make([]json.RawMessage, 0, len(rows))
	for _, row := range rows {
		payloads = append(payloads, json.RawMessage(row.Payload))
	}
	return payloads, nil
}

// DeleteOlderThan sweeps every object under the prefixes whose TTL has
// lapsed. Returns objects inspected and deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, prefixes []string, now time.Time) (inspected int64, deleted int64, err error) {
	for _, prefix := range prefixes {
		var count int64
		if err := s.DB.WithContext(ctx).Model(&StoredObject{}).
			Where("path LIKE ?", prefix+"%").
			Count(&count).Error; err != nil {
			return inspected, deleted, err
		}
		inspected += count

		res := s.DB.WithContext(ctx).
			Where("path LIKE ? AND created_at + (ttl_days * interval '1 day') < ?", prefix+"%", now).
			Delete(&StoredObject{})
		if res.Error != nil {
			return inspected, deleted, res.Error
		}
		deleted += res.RowsAffected
	}
	return inspected, deleted, nil
}

// Expired reports whether an object's retention has lapsed at now. The SQL
// sweep applies the same rule; this form exists for in-process checks.
func Expired(createdAt time.Time, ttlDays int, now time.Time) bool {
	return now.After(createdAt.AddDate(0, 0, ttlDays))
}
