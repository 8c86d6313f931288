// Package pids manages the persistent-identifier table and pid minting.
//
// A pid is minted from a per-type sequence inside the caller's transaction,
// so a rolled-back record releases nothing visible and the value is never
// reused: the sequence only moves forward.
package pids

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/openils/importer/internal/entities"
)

// Repository handles persistent identifier operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new pids repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Mint reserves the next pid value for pidType and registers it for
// objectUUID. The returned value is the zero-free decimal sequence number,
// e.g. "42".
func (r *Repository) Mint(pidType, objectUUID string) (string, error) {
	var seq entities.PIDSequence
	err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("pid_type = ?", pidType).First(&seq).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = entities.PIDSequence{PIDType: pidType, Next: 1}
		if err := r.db.Create(&seq).Error; err != nil {
			return "", fmt.Errorf("failed to create pid sequence %s: %w", pidType, err)
		}
	} else if err != nil {
		return "", err
	}

	value := fmt.Sprintf("%d", seq.Next)
	seq.Next++
	if err := r.db.Save(&seq).Error; err != nil {
		return "", err
	}

	pid := entities.PersistentIdentifier{
		PIDType:    pidType,
		PIDValue:   value,
		ObjectUUID: objectUUID,
		Status:     entities.PIDStatusRegistered,
	}
	if err := r.db.Create(&pid).Error; err != nil {
		return "", fmt.Errorf("failed to register pid %s:%s: %w", pidType, value, err)
	}
	return value, nil
}

// Register records an externally supplied pid value (legacy recids).
func (r *Repository) Register(pidType, pidValue, objectUUID string) error {
	pid := entities.PersistentIdentifier{
		PIDType:    pidType,
		PIDValue:   pidValue,
		ObjectUUID: objectUUID,
		Status:     entities.PIDStatusRegistered,
	}
	return r.db.Create(&pid).Error
}

// Get resolves a (pid_type, pid_value) pair.
func (r *Repository) Get(pidType, pidValue string) (*entities.PersistentIdentifier, error) {
	var pid entities.PersistentIdentifier
	err := r.db.Where("pid_type = ? AND pid_value = ?", pidType, pidValue).First(&pid).Error
	if err != nil {
		return nil, err
	}
	return &pid, nil
}

// MarkDeleted flips every pid pointing at objectUUID to DELETED. The rows
// stay so the values are never minted again.
func (r *Repository) MarkDeleted(objectUUID string) error {
	return r.db.Model(&entities.PersistentIdentifier{}).
		Where("object_uuid = ?", objectUUID).
		Update("status", entities.PIDStatusDeleted).Error
}

// StatusOf returns the status of a pid, or gorm.ErrRecordNotFound.
func (r *Repository) StatusOf(pidType, pidValue string) (entities.PIDStatus, error) {
	pid, err := r.Get(pidType, pidValue)
	if err != nil {
		return "", err
	}
	return pid.Status, nil
}
