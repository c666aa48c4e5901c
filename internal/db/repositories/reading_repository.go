package repositories

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	gormModels "motorpool/paddock/internal/models/gorm"
)

// ReadingRepository handles the append-only readings table
type ReadingRepository struct {
	db *gorm.DB
}

// NewReadingRepository creates a new GORM-based reading repository
func NewReadingRepository(db *gorm.DB) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Latest retrieves the most recent reading for a VIN, nil when none exists
func (r *ReadingRepository) Latest(ctx context.Context, vin string) (*gormModels.Reading, error) {
	var reading gormModels.Reading

	err := r.db.WithContext(ctx).
		Where("vin = ?", vin).
		Order("timestamp DESC").
		First(&reading).Error

	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to fetch latest reading: %w", err)
	}

	return &reading, nil
}

// Add appends a new reading
func (r *ReadingRepository) Add(ctx context.Context, reading *gormModels.Reading) error {
	if err := r.db.WithContext(ctx).Create(reading).Error; err != nil {
		return fmt.Errorf("failed to insert reading: %w", err)
	}
	return nil
}

// History retrieves readings for a VIN since the given time, oldest first
func (r *ReadingRepository) History(ctx context.Context, vin string, since time.Time) ([]gormModels.Reading, error) {
	var readings []gormModels.Reading

	err := r.db.WithContext(ctx).
		Where("vin = ? AND timestamp >= ?", vin, since).
		Order("timestamp ASC").
		Find(&readings).Error

	if err != nil {
		return nil, fmt.Errorf("failed to fetch reading history: %w", err)
	}

	return readings, nil
}
