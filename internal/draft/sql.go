package draft

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/langerlad/bulk-ip-app/internal/database"
)

// Entry is one persisted draft slot.
type Entry struct {
	Key       string `gorm:"column:slot;primaryKey;size:128"`
	Text      string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "ip_drafts"
}

type SQLStore struct {
	db     *gorm.DB
	ownsDB bool
}

// NewSQLStore wraps db. When owns is true Close also closes the connection.
func NewSQLStore(db *gorm.DB, owns bool) *SQLStore {
	return &SQLStore{db: db, ownsDB: owns}
}

func (s *SQLStore) Load(ctx context.Context, key string) (string, bool, error) {
	var entry Entry
	err := s.db.WithContext(ctx).Where("slot = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("draft: load: %w", err)
	}
	return entry.Text, true, nil
}

func (s *SQLStore) Save(ctx context.Context, key, text string) error {
	entry := Entry{Key: key, Text: text, UpdatedAt: time.Now().UTC()}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return fmt.Errorf("draft: save: %w", err)
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context, key string) error {
	if err := s.db.WithContext(ctx).Where("slot = ?", key).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("draft: clear: %w", err)
	}
	return nil
}

// PurgeStale removes drafts not written since before cutoff.
func (s *SQLStore) PurgeStale(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("updated_at < ?", cutoff).Delete(&Entry{})
	if result.Error != nil {
		return 0, fmt.Errorf("draft: purge: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *SQLStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return database.Close(s.db)
}
