// Package series provides database operations for series records and their
// search rows.
package series

import (
	"gorm.io/gorm"

	"github.com/openils/importer/internal/database/documents"
	"github.com/openils/importer/internal/entities"
)

// Repository handles all series database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new series repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new series.
func (r *Repository) Create(s *entities.Series) error {
	return r.db.Create(s).Error
}

// Save persists changes to an existing series.
func (r *Repository) Save(s *entities.Series) error {
	return r.db.Save(s).Error
}

// GetByPID retrieves a series by its pid.
func (r *Repository) GetByPID(pid string) (*entities.Series, error) {
	var s entities.Series
	err := r.db.Where("pid = ?", pid).First(&s).Error
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Index rewrites the search rows for a series.
func (r *Repository) Index(s *entities.Series) error {
	if err := r.db.Where("series_pid = ?", s.PID).
		Delete(&entities.SeriesSearchEntry{}).Error; err != nil {
		return err
	}

	meta := &s.Metadata
	entries := []entities.SeriesSearchEntry{{
		SeriesPID:       s.PID,
		NormalizedTitle: documents.NormalizeTitle(meta.Title),
		ModeOfIssuance:  string(meta.ModeOfIssuance),
		SeriesType:      meta.SeriesType,
	}}
	for _, id := range meta.Identifiers {
		entries = append(entries, entities.SeriesSearchEntry{
			SeriesPID: s.PID,
			Scheme:    id.Scheme,
			Value:     id.Value,
		})
	}
	return r.db.Create(&entries).Error
}

// SearchByIdentifier returns the pids of series indexed with the given
// (scheme, value) identifier.
func (r *Repository) SearchByIdentifier(scheme, value string) ([]string, error) {
	var pids []string
	err := r.db.Model(&entities.SeriesSearchEntry{}).
		Where("scheme = ? AND value = ?", scheme, value).
		Order("id ASC").
		Pluck("series_pid", &pids).Error
	return pids, err
}

// SearchByTitle returns the pids of series whose normalized title equals
// the given title.
func (r *Repository) SearchByTitle(title string) ([]string, error) {
	var pids []string
	err := r.db.Model(&entities.SeriesSearchEntry{}).
		Where("scheme = '' AND normalized_title = ?", documents.NormalizeTitle(title)).
		Order("id ASC").
		Pluck("series_pid", &pids).Error
	return pids, err
}
