// Package eitems provides database operations for electronic items.
package eitems

import (
	"gorm.io/gorm"

	"github.com/openils/importer/internal/entities"
)

// Repository handles all eitem database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new eitems repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new eitem.
func (r *Repository) Create(eitem *entities.EItem) error {
	return r.db.Create(eitem).Error
}

// Save persists changes to an existing eitem.
func (r *Repository) Save(eitem *entities.EItem) error {
	return r.db.Save(eitem).Error
}

// GetByPID retrieves an eitem by its pid.
func (r *Repository) GetByPID(pid string) (*entities.EItem, error) {
	var eitem entities.EItem
	err := r.db.Where("pid = ?", pid).First(&eitem).Error
	if err != nil {
		return nil, err
	}
	return &eitem, nil
}

// Delete removes an eitem.
func (r *Repository) Delete(eitem *entities.EItem) error {
	return r.db.Delete(eitem).Error
}

// ByDocument returns all eitems attached to a document, oldest first.
func (r *Repository) ByDocument(documentPID string) ([]entities.EItem, error) {
	var items []entities.EItem
	err := r.db.Where("document_pid = ?", documentPID).
		Order("id ASC").Find(&items).Error
	return items, err
}

// ByDocumentAndProvider returns the eitems a given provider imported for a
// document. User-created eitems are never included.
func (r *Repository) ByDocumentAndProvider(documentPID, provider string) ([]entities.EItem, error) {
	items, err := r.ByDocument(documentPID)
	if err != nil {
		return nil, err
	}
	var matched []entities.EItem
	for _, item := range items {
		if item.Metadata.ImportProvider() == provider {
			matched = append(matched, item)
		}
	}
	return matched, nil
}
