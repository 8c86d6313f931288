// Package relations provides database operations for parent-child record
// relations.
//
// Relations are the only place the document/eitem/series families point at
// each other; both sides are always resolved on demand by pid instead of
// being held in memory together.
package relations

import (
	"errors"

	"gorm.io/gorm"

	"github.com/openils/importer/internal/entities"
)

// Repository handles relation database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new relations repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Add creates a parent-child relation. Adding the same edge twice is a
// no-op.
func (r *Repository) Add(parentPID, childPID string, relType entities.RelationType, volume string) error {
	var existing entities.Relation
	err := r.db.Where(
		"parent_pid = ? AND child_pid = ? AND type = ?",
		parentPID, childPID, relType,
	).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	return r.db.Create(&entities.Relation{
		ParentPID: parentPID,
		ChildPID:  childPID,
		Type:      relType,
		Volume:    volume,
	}).Error
}

// ByChild returns all relations where pid is the child.
func (r *Repository) ByChild(pid string) ([]entities.Relation, error) {
	var rels []entities.Relation
	err := r.db.Where("child_pid = ?", pid).Order("id ASC").Find(&rels).Error
	return rels, err
}

// ByParent returns all relations where pid is the parent, ordered by
// volume.
func (r *Repository) ByParent(pid string) ([]entities.Relation, error) {
	var rels []entities.Relation
	err := r.db.Where("parent_pid = ?", pid).Order("volume ASC, id ASC").Find(&rels).Error
	return rels, err
}

// DeleteByChildAndType removes all relations of one type where pid is the
// child.
func (r *Repository) DeleteByChildAndType(pid string, relType entities.RelationType) error {
	return r.db.Where("child_pid = ? AND type = ?", pid, relType).
		Delete(&entities.Relation{}).Error
}
