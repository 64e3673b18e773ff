package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

// CorrelationRecord is the database row backing one correlation entry.
type CorrelationRecord struct {
	SessionID  string    `gorm:"primaryKey;size:64"`
	GatewayUID string    `gorm:"primaryKey;size:64"`
	Context    string    `gorm:"type:text"`
	Signature  string    `gorm:"size:128;not null"`
	ExpiresAt  time.Time `gorm:"not null;index"`
	CreatedAt  time.Time
}

func (CorrelationRecord) TableName() string { return "omnipay_correlations" }

// GormStore keeps correlation state in the application's database, for
// deployments where the host framework's sessions already live there.
type GormStore struct {
	db  *gorm.DB
	ttl time.Duration
}

// NewGormStore creates a database-backed store and ensures its table
// exists.
func NewGormStore(db *gorm.DB, ttl time.Duration) (*GormStore, error) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if err := db.AutoMigrate(&CorrelationRecord{}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, ttl: ttl}, nil
}

func (s *GormStore) Put(ctx context.Context, sessionID, uid string, c Correlation) error {
	contextJSON, err := json.Marshal(c.Context)
	if err != nil {
		return err
	}

	record := CorrelationRecord{
		SessionID:  sessionID,
		GatewayUID: uid,
		Context:    string(contextJSON),
		Signature:  c.Signature,
		ExpiresAt:  time.Now().Add(s.ttl),
		CreatedAt:  time.Now(),
	}

	// Overwrite any previous unconsumed entry for this session+uid.
	return s.db.WithContext(ctx).Save(&record).Error
}

func (s *GormStore) Take(ctx context.Context, sessionID, uid string) (Correlation, bool, error) {
	var c Correlation
	found := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record CorrelationRecord
		err := tx.Where("session_id = ? AND gateway_uid = ?", sessionID, uid).First(&record).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		if err := tx.Delete(&CorrelationRecord{}, "session_id = ? AND gateway_uid = ?", sessionID, uid).Error; err != nil {
			return err
		}

		if record.ExpiresAt.Before(time.Now()) {
			return nil
		}

		if record.Context != "" {
			if err := json.Unmarshal([]byte(record.Context), &c.Context); err != nil {
				return err
			}
		}
		c.Signature = record.Signature
		found = true
		return nil
	})
	if err != nil {
		return Correlation{}, false, err
	}

	return c, found, nil
}
