// Package importer drives one record end to end: provider validation,
// document matching, document create or update, eitem reconciliation,
// series attachment and indexing, producing the per-record report row the
// task log stores.
//
// Every record runs in its own transaction. Domain failures roll back that
// record and land in the report; storage failures surface as errors so the
// surrounding file task can abort.
package importer

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/openils/importer/internal/config"
	"github.com/openils/importer/internal/database/documents"
	eitemsdb "github.com/openils/importer/internal/database/eitems"
	"github.com/openils/importer/internal/database/pids"
	"github.com/openils/importer/internal/database/relations"
	seriesdb "github.com/openils/importer/internal/database/series"
	"github.com/openils/importer/internal/eitems"
	"github.com/openils/importer/internal/entities"
	"github.com/openils/importer/internal/matcher"
	"github.com/openils/importer/internal/series"
	"github.com/openils/importer/internal/vocabulary"
)

type Importer struct {
	db    *gorm.DB
	cfg   config.Importer
	vocab *vocabulary.Validator
}

func New(db *gorm.DB, cfg config.Importer, vocab *vocabulary.Validator) *Importer {
	return &Importer{db: db, cfg: cfg, vocab: vocab}
}

// components is the per-transaction wiring of stores and stages.
type components struct {
	documents  *documents.Repository
	series     *seriesdb.Repository
	relations  *relations.Repository
	pids       *pids.Repository
	matcher    *matcher.Matcher
	reconciler *eitems.Reconciler
	seriesImp  *series.Importer
}

func (imp *Importer) bind(tx *gorm.DB) *components {
	docs := documents.NewRepository(tx)
	ser := seriesdb.NewRepository(tx)
	rels := relations.NewRepository(tx)
	pidRepo := pids.NewRepository(tx)
	return &components{
		documents:  docs,
		series:     ser,
		relations:  rels,
		pids:       pidRepo,
		matcher:    matcher.NewMatcher(docs, rels, ser),
		reconciler: eitems.NewReconciler(eitemsdb.NewRepository(tx), pidRepo, imp.cfg),
		seriesImp:  series.NewImporter(ser, rels, pidRepo, imp.vocab),
	}
}

// ImportRecord imports one transformed record. The returned error is nil
// for everything the record itself caused; it is non-nil only when the
// store broke, which fails the whole file.
func (imp *Importer) ImportRecord(ctx context.Context, raw *entities.DocumentMetadata, provider string) (*entities.ImportRecord, error) {
	report := newReport(raw)
	if err := imp.validateProvider(raw, provider, entities.ModeImport); err != nil {
		return failed(report, err), nil
	}

	var toIndex []*entities.Document
	err := imp.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		docs, err := imp.importInTx(imp.bind(tx), raw, provider, report)
		toIndex = docs
		return err
	})
	if err != nil {
		if isDomainError(err) {
			return failed(report, err), nil
		}
		return report, err
	}

	if err := imp.indexDocuments(toIndex); err != nil {
		return report, err
	}
	return report, nil
}

// PreviewImport runs the import decisions inside a transaction that is
// always rolled back.
func (imp *Importer) PreviewImport(ctx context.Context, raw *entities.DocumentMetadata, provider string) (*entities.ImportRecord, error) {
	report := newReport(raw)
	if err := imp.validateProvider(raw, provider, entities.ModePreviewImport); err != nil {
		return failed(report, err), nil
	}

	tx := imp.db.WithContext(ctx).Begin()
	defer tx.Rollback()

	if _, err := imp.importInTx(imp.bind(tx), raw, provider, report); err != nil {
		if isDomainError(err) {
			return failed(report, err), nil
		}
		return report, err
	}
	return report, nil
}

func (imp *Importer) importInTx(c *components, raw *entities.DocumentMetadata, provider string, report *entities.ImportRecord) ([]*entities.Document, error) {
	matched, err := imp.matchRecord(c, raw, provider, report)
	if err != nil {
		return nil, err
	}

	if matched != nil {
		doc, err := imp.updateDocument(c, matched, raw, provider, report)
		if err != nil {
			return nil, err
		}
		return []*entities.Document{doc}, nil
	}

	if len(report.PartialMatches) > 0 {
		setAction(report, entities.ActionNone)
		return nil, nil
	}

	if raw.Migration != nil && raw.Migration.MultivolumeRecord {
		return imp.createMultivolume(c, raw, provider, report)
	}

	doc, err := imp.createDocument(c, raw, provider, report)
	if err != nil {
		return nil, err
	}
	return []*entities.Document{doc}, nil
}

// DeleteRecord handles one record of a delete file. The current provider's
// eitems go first in their own transaction; the document itself is removed
// only when the record carries the deletion marker and nothing references
// the document anymore.
func (imp *Importer) DeleteRecord(ctx context.Context, raw *entities.DocumentMetadata, provider string, deletable bool) (*entities.ImportRecord, error) {
	report := newReport(raw)
	if err := imp.validateProvider(raw, provider, entities.ModeDelete); err != nil {
		return failed(report, err), nil
	}
	if !imp.cfg.Providers[provider].CanDelete {
		return failed(report, &entities.ProviderNotAllowedDeletion{Provider: provider}), nil
	}

	var matched *entities.Document
	err := imp.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c := imp.bind(tx)
		var err error
		matched, err = imp.matchRecord(c, raw, provider, report)
		if err != nil {
			return err
		}
		if matched == nil {
			setAction(report, entities.ActionNone)
			return nil
		}
		report.OutputPID = matched.PID
		report.EItem = c.reconciler.Delete(matched.PID, provider)
		if report.EItem.Action == eitems.ActionError {
			return &entities.DocumentImportError{Message: report.EItem.Error}
		}
		return nil
	})
	if err != nil {
		if isDomainError(err) {
			return failed(report, err), nil
		}
		return report, err
	}
	if matched == nil {
		return report, nil
	}

	if !deletable {
		return failed(report, &entities.RecordNotDeletable{}), nil
	}

	// The eitem sweep above stays committed even when the document
	// deletion is refused.
	err = imp.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return imp.deleteDocument(imp.bind(tx), matched)
	})
	if err != nil {
		if isDomainError(err) {
			return failed(report, err), nil
		}
		return report, err
	}

	setAction(report, entities.ActionDelete)
	return report, nil
}

// PreviewDelete reports what a delete run would do without changing
// anything.
func (imp *Importer) PreviewDelete(ctx context.Context, raw *entities.DocumentMetadata, provider string, deletable bool) (*entities.ImportRecord, error) {
	report := newReport(raw)
	if err := imp.validateProvider(raw, provider, entities.ModePreviewDelete); err != nil {
		return failed(report, err), nil
	}
	if !imp.cfg.Providers[provider].CanDelete {
		return failed(report, &entities.ProviderNotAllowedDeletion{Provider: provider}), nil
	}
	if !deletable {
		return failed(report, &entities.RecordNotDeletable{}), nil
	}

	tx := imp.db.WithContext(ctx).Begin()
	defer tx.Rollback()
	c := imp.bind(tx)

	matched, err := imp.matchRecord(c, raw, provider, report)
	if err != nil {
		if isDomainError(err) {
			return failed(report, err), nil
		}
		return report, err
	}
	if matched == nil {
		setAction(report, entities.ActionNone)
		return report, nil
	}
	report.OutputPID = matched.PID
	setAction(report, entities.ActionDelete)
	return report, nil
}

// validateProvider checks the provider exists and that the record's agency
// code is the one the provider stamps into its own payloads.
func (imp *Importer) validateProvider(raw *entities.DocumentMetadata, provider string, mode entities.ImportMode) error {
	policy, ok := imp.cfg.Providers[provider]
	if !ok {
		return &entities.UnknownProvider{Provider: provider}
	}
	if policy.AgencyCode != "" && raw.AgencyCode != "" && raw.AgencyCode != policy.AgencyCode {
		return &entities.InvalidProvider{Provider: provider, Mode: string(mode)}
	}
	return nil
}

// matchRecord runs the exact cascade plus validation and, when no trusted
// match remains, the fuzzy pass. Ambiguous and similar candidates are
// recorded on the report.
func (imp *Importer) matchRecord(c *components, raw *entities.DocumentMetadata, provider string, report *entities.ImportRecord) (*entities.Document, error) {
	candidates, err := c.matcher.SearchForMatchingDocuments(raw)
	if err != nil {
		return nil, err
	}
	match, partial, err := c.matcher.ValidateFoundMatches(raw, provider, candidates)
	if err != nil {
		return nil, err
	}
	for _, pid := range partial {
		report.PartialMatches = append(report.PartialMatches, entities.PartialMatch{
			PID: pid, Type: entities.PartialMatchAmbiguous,
		})
	}
	if match != "" {
		return c.documents.GetByPID(match)
	}

	similar, err := c.matcher.FuzzyMatchDocuments(raw)
	if err != nil {
		return nil, err
	}
	for _, pid := range similar {
		report.PartialMatches = append(report.PartialMatches, entities.PartialMatch{
			PID: pid, Type: entities.PartialMatchSimilar,
		})
	}
	return nil, nil
}

// updateDocument merges the allowed fields into the matched document, then
// reconciles eitems and series.
func (imp *Importer) updateDocument(c *components, matched *entities.Document, raw *entities.DocumentMetadata, provider string, report *entities.ImportRecord) (*entities.Document, error) {
	matched.Metadata.Identifiers = unionIdentifiers(matched.Metadata.Identifiers, raw.Identifiers)
	matched.Metadata.AlternativeIdentifiers = unionIdentifiers(matched.Metadata.AlternativeIdentifiers, raw.AlternativeIdentifiers)
	if err := c.documents.Save(matched); err != nil {
		return nil, err
	}

	if err := imp.attachSatellites(c, matched, raw, provider, report); err != nil {
		return nil, err
	}

	setAction(report, entities.ActionUpdate)
	report.OutputPID = matched.PID
	report.DocumentJSON = &matched.Metadata
	return matched, nil
}

// createDocument validates, strips the helper fields and stores a fresh
// document, then creates its eitem and series.
func (imp *Importer) createDocument(c *components, raw *entities.DocumentMetadata, provider string, report *entities.ImportRecord) (*entities.Document, error) {
	record, err := imp.storeDocument(c, raw, provider)
	if err != nil {
		return nil, err
	}

	if err := imp.attachSatellites(c, record, raw, provider, report); err != nil {
		return nil, err
	}

	setAction(report, entities.ActionCreate)
	report.OutputPID = record.PID
	report.DocumentJSON = &record.Metadata
	return record, nil
}

// createMultivolume explodes a multi-volume record into a multipart parent
// series plus one document per volume, each carrying its own eitem and
// linked to the parent with its volume number.
func (imp *Importer) createMultivolume(c *components, raw *entities.DocumentMetadata, provider string, report *entities.ImportRecord) ([]*entities.Document, error) {
	split, err := series.SplitMultivolume(raw, provider)
	if err != nil {
		return nil, err
	}

	parentUUID := uuid.NewString()
	value, err := c.pids.Mint(entities.PIDTypeSeries, parentUUID)
	if err != nil {
		return nil, err
	}
	parentPID := entities.PIDTypeSeries + "-" + value
	split.Parent.PID = parentPID
	parent := &entities.Series{PID: parentPID, UUID: parentUUID, Metadata: split.Parent}
	if err := c.series.Create(parent); err != nil {
		return nil, err
	}
	if err := c.series.Index(parent); err != nil {
		return nil, err
	}
	report.Series = append(report.Series, entities.SeriesReport{
		Action: series.ActionCreate,
		PID:    parentPID,
		Series: &parent.Metadata,
	})

	var created []*entities.Document
	for i := range split.Children {
		child := &split.Children[i]
		record, err := imp.storeDocument(c, child, provider)
		if err != nil {
			return nil, err
		}
		report.EItem = imp.reconcile(c, record, child, provider)
		if report.EItem != nil && report.EItem.Action == eitems.ActionError {
			return nil, &entities.DocumentImportError{Message: report.EItem.Error}
		}
		if err := c.relations.Add(parentPID, record.PID, entities.RelationMultipart, split.Volumes[i].Volume); err != nil {
			return nil, err
		}
		created = append(created, record)
	}

	setAction(report, entities.ActionCreate)
	if len(created) > 0 {
		report.OutputPID = created[0].PID
		report.DocumentJSON = &created[0].Metadata
	}
	return created, nil
}

// storeDocument mints a pid and persists the stripped, validated document.
func (imp *Importer) storeDocument(c *components, raw *entities.DocumentMetadata, provider string) (*entities.Document, error) {
	stored := stripHelperFields(raw)
	stored.CreatedBy = &entities.CreatedBy{
		Type:  entities.CreatedByTypeImport,
		Value: strings.ToLower(provider),
	}
	if err := imp.validateVocabularies(stored); err != nil {
		return nil, err
	}

	objectUUID := uuid.NewString()
	value, err := c.pids.Mint(entities.PIDTypeDocument, objectUUID)
	if err != nil {
		return nil, err
	}
	pid := entities.PIDTypeDocument + "-" + value
	stored.PID = pid
	if raw.LegacyRecID != "" {
		if err := c.pids.Register(entities.PIDTypeLegacyDocument, raw.LegacyRecID, objectUUID); err != nil {
			return nil, err
		}
	}

	record := &entities.Document{PID: pid, UUID: objectUUID, Metadata: *stored}
	if err := c.documents.Create(record); err != nil {
		return nil, err
	}
	return record, nil
}

// attachSatellites reconciles the eitem and imports the `_serial` entries
// for a stored document.
func (imp *Importer) attachSatellites(c *components, record *entities.Document, raw *entities.DocumentMetadata, provider string, report *entities.ImportRecord) error {
	report.EItem = imp.reconcile(c, record, raw, provider)
	if report.EItem != nil && report.EItem.Action == eitems.ActionError {
		return &entities.DocumentImportError{Message: report.EItem.Error}
	}

	seriesReports, err := c.seriesImp.ImportSeries(record, raw.Serial, provider)
	report.Series = append(report.Series, seriesReports...)
	return err
}

// reconcile hands the reconciler a view of the stored document carrying the
// incoming `_eitem` candidate, which the stored metadata no longer has.
func (imp *Importer) reconcile(c *components, record *entities.Document, raw *entities.DocumentMetadata, provider string) *entities.EItemReport {
	view := *record
	view.Metadata.EItem = raw.EItem
	return c.reconciler.Reconcile(&view, provider)
}

// deleteDocument removes a document once nothing refers to it: live
// external references refuse the deletion, non-serial relations refuse it,
// serial relations are detached first.
func (imp *Importer) deleteDocument(c *components, matched *entities.Document) error {
	refs, err := c.documents.References(matched.PID)
	if err != nil {
		return err
	}
	for refType, ids := range refs {
		return &entities.DocumentHasReferencesError{
			PID:     matched.PID,
			RefType: refType,
			RefIDs:  ids,
		}
	}

	related, err := c.relations.ByChild(matched.PID)
	if err != nil {
		return err
	}
	parents, err := c.relations.ByParent(matched.PID)
	if err != nil {
		return err
	}
	for _, rel := range append(related, parents...) {
		if rel.Type != entities.RelationSerial {
			return &entities.DocumentImportError{
				Message: "document is part of a " + string(rel.Type) + " relation",
			}
		}
	}

	if err := c.relations.DeleteByChildAndType(matched.PID, entities.RelationSerial); err != nil {
		return err
	}
	if err := c.documents.DeleteIndex(matched.PID); err != nil {
		return err
	}
	if err := c.documents.Delete(matched); err != nil {
		return err
	}
	return c.pids.MarkDeleted(matched.UUID)
}

// indexDocuments rewrites the search rows of the committed documents and
// blocks until they are visible, so the next record's matcher observes this
// one's outcome.
func (imp *Importer) indexDocuments(docs []*entities.Document) error {
	if len(docs) == 0 {
		return nil
	}
	repo := documents.NewRepository(imp.db)
	for _, doc := range docs {
		if err := repo.Index(doc); err != nil {
			return err
		}
	}
	return repo.FlushAndRefresh()
}

func (imp *Importer) validateVocabularies(meta *entities.DocumentMetadata) error {
	rawJSON, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	var record map[string]any
	if err := json.Unmarshal(rawJSON, &record); err != nil {
		return err
	}
	return imp.vocab.Validate(vocabulary.DocumentDefinitions, record)
}

// stripHelperFields returns a copy without the pipeline-internal metadata.
func stripHelperFields(raw *entities.DocumentMetadata) *entities.DocumentMetadata {
	stored := *raw
	stored.EItem = nil
	stored.AgencyCode = ""
	stored.Serial = nil
	stored.ProviderRecID = ""
	stored.Migration = nil
	return &stored
}

func newReport(raw *entities.DocumentMetadata) *entities.ImportRecord {
	return &entities.ImportRecord{
		EntryRecID: raw.ProviderRecID,
		RawJSON:    raw,
	}
}

func failed(report *entities.ImportRecord, err error) *entities.ImportRecord {
	setAction(report, entities.ActionError)
	report.Error = err.Error()
	return report
}

func setAction(report *entities.ImportRecord, action entities.RecordAction) {
	report.Action = &action
}

// isDomainError separates record-level failures from storage failures.
func isDomainError(err error) bool {
	switch err.(type) {
	case *entities.UnexpectedValue,
		*entities.MissingRequiredField,
		*entities.ManualImportRequired,
		*entities.LossyConversion,
		*entities.UnrecognisedImportMediaType,
		*entities.RecordNotDeletable,
		*entities.ProviderNotAllowedDeletion,
		*entities.UnknownProvider,
		*entities.InvalidProvider,
		*entities.DocumentImportError,
		*entities.SeriesImportError,
		*entities.SimilarityMatchUnavailable,
		*entities.DocumentHasReferencesError,
		*vocabulary.Error:
		return true
	}
	return false
}

func unionIdentifiers(existing, incoming []entities.Identifier) []entities.Identifier {
	merged := append([]entities.Identifier{}, existing...)
	for _, id := range incoming {
		duplicate := false
		for _, have := range merged {
			if have == id {
				duplicate = true
				break
			}
		}
		if !duplicate {
			merged = append(merged, id)
		}
	}
	return merged
}
