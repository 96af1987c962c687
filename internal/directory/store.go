package directory

import (
	"context"
	"fmt"

	"companion-call-demo/backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store is a backing source for the companion catalog
type Store interface {
	List(ctx context.Context) ([]models.CompanionProfile, error)
}

// StaticStore serves a fixed in-memory catalog
type StaticStore struct {
	profiles []models.CompanionProfile
}

// NewStaticStore copies profiles into a read-only store
func NewStaticStore(profiles []models.CompanionProfile) *StaticStore {
	s := &StaticStore{profiles: make([]models.CompanionProfile, len(profiles))}
	for i, p := range profiles {
		s.profiles[i] = p.Clone()
	}
	return s
}

// List returns a copy of the catalog in its fixed order
func (s *StaticStore) List(ctx context.Context) ([]models.CompanionProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.CompanionProfile, len(s.profiles))
	for i, p := range s.profiles {
		out[i] = p.Clone()
	}
	return out, nil
}

// GormStore reads the catalog from the companions table
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an open database handle
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates the companions table
func (s *GormStore) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&models.CompanionRecord{})
}

// Seed upserts profiles keeping their slice order as catalog order
func (s *GormStore) Seed(ctx context.Context, profiles []models.CompanionProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	records := make([]models.CompanionRecord, len(profiles))
	for i, p := range profiles {
		records[i] = models.NewCompanionRecord(p, i)
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&records).Error
	if err != nil {
		return fmt.Errorf("seed companions: %w", err)
	}
	return nil
}

// List returns every companion ordered by catalog position
func (s *GormStore) List(ctx context.Context) ([]models.CompanionProfile, error) {
	var records []models.CompanionRecord
	if err := s.db.WithContext(ctx).Order("position asc").Find(&records).Error; err != nil {
		return nil, err
	}

	out := make([]models.CompanionProfile, 0, len(records))
	for _, r := range records {
		out = append(out, r.Profile())
	}
	return out, nil
}
