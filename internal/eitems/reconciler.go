// Package eitems applies the provider-priority policy to the electronic
// items of a matched document: one incoming `_eitem` payload becomes a
// create, an in-place update, a replace of a lesser provider's item, or a
// no-op, and an optional sweep clears out items from providers with less
// authority than the current import. User-created items are never touched.
package eitems

import (
	"github.com/google/uuid"

	"github.com/openils/importer/internal/config"
	eitemsdb "github.com/openils/importer/internal/database/eitems"
	"github.com/openils/importer/internal/database/pids"
	"github.com/openils/importer/internal/entities"
)

// Reconciler actions reported per record.
const (
	ActionCreate  = "create"
	ActionUpdate  = "update"
	ActionReplace = "replace"
	ActionDelete  = "delete"
	ActionNone    = "none"
	ActionError   = "error"
)

type Reconciler struct {
	eitems *eitemsdb.Repository
	pids   *pids.Repository
	cfg    config.Importer
}

func NewReconciler(repo *eitemsdb.Repository, pidRepo *pids.Repository, cfg config.Importer) *Reconciler {
	return &Reconciler{eitems: repo, pids: pidRepo, cfg: cfg}
}

// Reconcile decides what to do with the incoming `_eitem` payload of doc.
// The decision is scoped to existing import-created items of the same eitem
// type; user-created items coexist with whatever the import does. When the
// installation is priority sensitive, a final sweep deletes every import
// item owned by a strictly less authoritative provider.
func (r *Reconciler) Reconcile(doc *entities.Document, provider string) *entities.EItemReport {
	report := &entities.EItemReport{Action: ActionNone}

	candidate := doc.Metadata.EItem
	if candidate != nil {
		if err := r.apply(doc, provider, candidate, report); err != nil {
			return &entities.EItemReport{Action: ActionError, Error: err.Error()}
		}
	}

	if r.cfg.PrioritySensitive {
		if err := r.sweepLowerPriority(doc.PID, provider, report); err != nil {
			report.Action = ActionError
			report.Error = err.Error()
		}
	}
	return report
}

func (r *Reconciler) apply(doc *entities.Document, provider string, candidate *entities.EItemCandidate, report *entities.EItemReport) error {
	existing, err := r.importedOfType(doc.PID, candidate.Type)
	if err != nil {
		return err
	}

	switch {
	case len(existing) == 0:
		return r.create(doc, provider, report, ActionCreate)

	case len(existing) == 1 && existing[0].Metadata.ImportProvider() == provider:
		return r.update(&existing[0], doc, provider, report)

	case len(existing) == 1:
		if !r.cfg.PrioritySensitive {
			return r.create(doc, provider, report, ActionCreate)
		}
		if r.priority(provider) <= r.priority(existing[0].Metadata.ImportProvider()) {
			if err := r.eitems.Delete(&existing[0]); err != nil {
				return err
			}
			report.DeletedPIDs = append(report.DeletedPIDs, existing[0].PID)
			return r.create(doc, provider, report, ActionReplace)
		}
		report.Action = ActionNone
		return nil

	default:
		// More than one import item of the same type is a conflict the
		// catalog cannot represent; collapse to a single fresh item.
		for i := range existing {
			if err := r.eitems.Delete(&existing[i]); err != nil {
				return err
			}
			report.DeletedPIDs = append(report.DeletedPIDs, existing[i].PID)
		}
		return r.create(doc, provider, report, ActionReplace)
	}
}

// Delete removes the current provider's items from a document, for delete
// mode imports.
func (r *Reconciler) Delete(documentPID, provider string) *entities.EItemReport {
	report := &entities.EItemReport{Action: ActionNone}

	items, err := r.eitems.ByDocumentAndProvider(documentPID, provider)
	if err != nil {
		return &entities.EItemReport{Action: ActionError, Error: err.Error()}
	}
	for i := range items {
		if err := r.eitems.Delete(&items[i]); err != nil {
			return &entities.EItemReport{Action: ActionError, Error: err.Error()}
		}
		report.DeletedPIDs = append(report.DeletedPIDs, items[i].PID)
	}
	if len(report.DeletedPIDs) > 0 {
		report.Action = ActionDelete
	}
	return report
}

// importedOfType returns the import-created items of a document sharing the
// incoming eitem type.
func (r *Reconciler) importedOfType(documentPID string, eitemType entities.EItemType) ([]entities.EItem, error) {
	items, err := r.eitems.ByDocument(documentPID)
	if err != nil {
		return nil, err
	}
	var matched []entities.EItem
	for _, item := range items {
		if item.Metadata.ImportProvider() == "" {
			continue
		}
		if item.Metadata.EItemType == eitemType {
			matched = append(matched, item)
		}
	}
	return matched, nil
}

func (r *Reconciler) create(doc *entities.Document, provider string, report *entities.EItemReport, action string) error {
	objectUUID := uuid.NewString()
	value, err := r.pids.Mint(entities.PIDTypeEItem, objectUUID)
	if err != nil {
		return err
	}
	pid := entities.PIDTypeEItem + "-" + value

	meta := r.buildMetadata(doc, provider)
	meta.PID = pid
	eitem := &entities.EItem{
		PID:         pid,
		UUID:        objectUUID,
		DocumentPID: doc.PID,
		Metadata:    meta,
	}
	if err := r.eitems.Create(eitem); err != nil {
		return err
	}

	report.Action = action
	report.PID = pid
	report.EItem = &eitem.Metadata
	return nil
}

func (r *Reconciler) update(eitem *entities.EItem, doc *entities.Document, provider string, report *entities.EItemReport) error {
	meta := r.buildMetadata(doc, provider)
	meta.PID = eitem.PID
	eitem.Metadata = meta
	if err := r.eitems.Save(eitem); err != nil {
		return err
	}

	report.Action = ActionUpdate
	report.PID = eitem.PID
	report.EItem = &eitem.Metadata
	return nil
}

// buildMetadata assembles the stored item from the `_eitem` payload, the
// document's DOIs and the provider's access policy. Stored urls carry only
// the login_required flag; the proxied login URL is derived at serialization
// time.
func (r *Reconciler) buildMetadata(doc *entities.Document, provider string) entities.EItemMetadata {
	policy := r.cfg.Providers[provider]
	candidate := doc.Metadata.EItem

	urls := make([]entities.URL, len(candidate.URLs))
	copy(urls, candidate.URLs)
	for i := range urls {
		urls[i].LoginRequired = policy.EItemLoginRequired
		urls[i].LoginRequiredURL = ""
	}

	var dois []entities.Identifier
	for _, id := range doc.Metadata.Identifiers {
		if id.Scheme == entities.SchemeDOI {
			dois = append(dois, id)
		}
	}

	return entities.EItemMetadata{
		DocumentPID:   doc.PID,
		URLs:          urls,
		OpenAccess:    policy.EItemOpenAccess,
		EItemType:     candidate.Type,
		Identifiers:   dois,
		Description:   candidate.Description,
		InternalNotes: candidate.InternalNotes,
		CreatedBy: entities.CreatedBy{
			Type:  entities.CreatedByTypeImport,
			Value: provider,
		},
	}
}

// sweepLowerPriority deletes every import item of the document whose owning
// provider has a strictly greater priority value than the current import.
// Items touched by the decision above carry the current provider and are
// never swept.
func (r *Reconciler) sweepLowerPriority(documentPID, provider string, report *entities.EItemReport) error {
	current := r.priority(provider)

	items, err := r.eitems.ByDocument(documentPID)
	if err != nil {
		return err
	}
	for i := range items {
		owner := items[i].Metadata.ImportProvider()
		if owner == "" || owner == provider {
			continue
		}
		if r.priority(owner) > current {
			if err := r.eitems.Delete(&items[i]); err != nil {
				return err
			}
			report.DeletedPIDs = append(report.DeletedPIDs, items[i].PID)
		}
	}
	return nil
}

// priority returns the provider's configured priority value, lower meaning
// more authoritative. Unknown providers sort last.
func (r *Reconciler) priority(provider string) int {
	p, ok := r.cfg.Providers[provider]
	if !ok {
		return int(^uint(0) >> 1)
	}
	return p.Priority
}
