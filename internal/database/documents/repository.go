// Package documents provides database operations for catalog documents and
// their denormalized search rows.
//
// The search rows stand in for the search engine: the matcher only ever
// reads them, and they are rewritten by Index after a record's transaction
// commits. A document that was just created but not yet indexed is therefore
// invisible to the matcher, which is exactly the visibility barrier the
// import loop relies on between records.
package documents

import (
	"strings"

	"gorm.io/gorm"

	"github.com/openils/importer/internal/entities"
)

// Repository handles all document database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new documents repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the given transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// NormalizeTitle collapses whitespace and casefolds a title the same way at
// index and query time.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ")
}

// AuthorsText is the concatenated-author form stored in the search rows and
// matched against incoming author lists.
func AuthorsText(authors []string) string {
	return NormalizeTitle(strings.Join(authors, " "))
}

// Create inserts a new document.
func (r *Repository) Create(doc *entities.Document) error {
	return r.db.Create(doc).Error
}

// Save persists changes to an existing document.
func (r *Repository) Save(doc *entities.Document) error {
	return r.db.Save(doc).Error
}

// GetByPID retrieves a document by its pid.
func (r *Repository) GetByPID(pid string) (*entities.Document, error) {
	var doc entities.Document
	err := r.db.Where("pid = ?", pid).First(&doc).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// Delete removes a document.
func (r *Repository) Delete(doc *entities.Document) error {
	return r.db.Delete(doc).Error
}

// Index rewrites the search rows for a document: one row per identifier
// plus one title row (scheme ""). Called after the owning transaction
// commits.
func (r *Repository) Index(doc *entities.Document) error {
	if err := r.DeleteIndex(doc.PID); err != nil {
		return err
	}

	meta := &doc.Metadata
	entries := []entities.DocumentSearchEntry{{
		DocumentPID:     doc.PID,
		NormalizedTitle: NormalizeTitle(meta.Title),
		Subtitle:        NormalizeTitle(meta.Subtitle()),
		AuthorsText:     AuthorsText(meta.AuthorNames()),
		IsSerialIssue:   meta.DocumentType == entities.DocumentTypeSerialIssue || len(meta.Serial) > 0,
	}}
	for _, id := range meta.Identifiers {
		entries = append(entries, entities.DocumentSearchEntry{
			DocumentPID: doc.PID,
			Scheme:      id.Scheme,
			Value:       id.Value,
		})
	}
	return r.db.Create(&entries).Error
}

// DeleteIndex removes all search rows of a document.
func (r *Repository) DeleteIndex(pid string) error {
	return r.db.Where("document_pid = ?", pid).
		Delete(&entities.DocumentSearchEntry{}).Error
}

// FlushAndRefresh blocks until previously indexed entries are visible to
// subsequent searches. SQLite gives this for free within one connection;
// the explicit barrier keeps the read-your-writes contract visible where
// the import loop depends on it.
func (r *Repository) FlushAndRefresh() error {
	var n int64
	return r.db.Model(&entities.DocumentSearchEntry{}).Count(&n).Error
}

// SearchByIdentifier returns the pids of documents indexed with the given
// (scheme, value) identifier, in index-insertion order.
func (r *Repository) SearchByIdentifier(scheme, value string) ([]string, error) {
	var pids []string
	err := r.db.Model(&entities.DocumentSearchEntry{}).
		Where("scheme = ? AND value = ?", scheme, value).
		Order("id ASC").
		Pluck("document_pid", &pids).Error
	return pids, err
}

// SearchByTitleAuthors returns the pids of documents whose normalized title
// equals the given title and whose concatenated authors match. A non-empty
// subtitle further restricts the hits.
func (r *Repository) SearchByTitleAuthors(title string, authors []string, subtitle string) ([]string, error) {
	query := r.db.Model(&entities.DocumentSearchEntry{}).
		Where("scheme = '' AND normalized_title = ?", NormalizeTitle(title))
	if text := AuthorsText(authors); text != "" {
		query = query.Where("authors_text = ?", text)
	}
	if subtitle != "" {
		query = query.Where("subtitle = ?", NormalizeTitle(subtitle))
	}

	var pids []string
	err := query.Order("id ASC").Pluck("document_pid", &pids).Error
	return pids, err
}

// TitleEntries returns every title search row, used by the fuzzy matcher to
// score candidates in memory.
func (r *Repository) TitleEntries() ([]entities.DocumentSearchEntry, error) {
	var entries []entities.DocumentSearchEntry
	err := r.db.Where("scheme = ''").Order("id ASC").Find(&entries).Error
	return entries, err
}

// References returns the live external references of a document, grouped by
// reference type.
func (r *Repository) References(pid string) (map[string][]string, error) {
	var refs []entities.DocumentReference
	err := r.db.Where("document_pid = ?", pid).Order("ref_id ASC").Find(&refs).Error
	if err != nil {
		return nil, err
	}
	if len(refs) == 0 {
		return nil, nil
	}
	grouped := make(map[string][]string)
	for _, ref := range refs {
		grouped[ref.RefType] = append(grouped[ref.RefType], ref.RefID)
	}
	return grouped, nil
}

// AddReference records an external reference to a document. The circulation
// side owns these rows; the importer only ever reads them.
func (r *Repository) AddReference(pid, refType, refID string) error {
	return r.db.Create(&entities.DocumentReference{
		DocumentPID: pid,
		RefType:     refType,
		RefID:       refID,
	}).Error
}
