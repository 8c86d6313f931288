// Package vocabulary provides database operations for search-backed
// controlled vocabularies.
//
// This is the "search" source of the vocabulary validator: membership is
// checked per key instead of loading the whole vocabulary at once.
package vocabulary

import (
	"gorm.io/gorm"

	"github.com/openils/importer/internal/entities"
)

// Repository handles vocabulary entry database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new vocabulary repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AddEntry creates a vocabulary entry.
func (r *Repository) AddEntry(vocabType, key string) error {
	return r.db.Create(&entities.VocabularyEntry{Type: vocabType, Key: key}).Error
}

// HasKey reports whether key exists in the vocabulary of the given type.
func (r *Repository) HasKey(vocabType, key string) (bool, error) {
	var count int64
	err := r.db.Model(&entities.VocabularyEntry{}).
		Where("type = ? AND key = ?", vocabType, key).
		Count(&count).Error
	return count == 1, err
}

// Keys returns all keys of one vocabulary type.
func (r *Repository) Keys(vocabType string) ([]string, error) {
	var keys []string
	err := r.db.Model(&entities.VocabularyEntry{}).
		Where("type = ?", vocabType).
		Order("key ASC").
		Pluck("key", &keys).Error
	return keys, err
}
