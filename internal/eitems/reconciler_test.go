package eitems

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openils/importer/internal/config"
	eitemsdb "github.com/openils/importer/internal/database/eitems"
	"github.com/openils/importer/internal/database/pids"
	"github.com/openils/importer/internal/entities"
)

func setupReconciler(t *testing.T, prioritySensitive bool) (*Reconciler, *eitemsdb.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entities.EItem{},
		&entities.PersistentIdentifier{},
		&entities.PIDSequence{},
	))

	cfg := config.Importer{
		Providers: map[string]config.Provider{
			"cds":      {Priority: 1, EItemOpenAccess: true},
			"springer": {Priority: 2, EItemLoginRequired: true},
			"ebl":      {Priority: 3, EItemLoginRequired: true},
			"safari":   {Priority: 4, EItemLoginRequired: true},
		},
		PrioritySensitive: prioritySensitive,
	}
	repo := eitemsdb.NewRepository(db)
	return NewReconciler(repo, pids.NewRepository(db), cfg), repo
}

func testDocument(pid string) *entities.Document {
	return &entities.Document{
		PID:  pid,
		UUID: "uuid-" + pid,
		Metadata: entities.DocumentMetadata{
			Title: "Concrete Mathematics",
			Identifiers: []entities.Identifier{
				{Scheme: entities.SchemeDOI, Value: "10.1000/cm"},
				{Scheme: entities.SchemeISBN, Value: "9780201558029"},
			},
			EItem: &entities.EItemCandidate{
				Type:        entities.EItemTypeEBook,
				URLs:        []entities.URL{{Value: "https://ebooks.example.org/cm"}},
				Description: "e-book",
			},
		},
	}
}

func seedEItem(t *testing.T, repo *eitemsdb.Repository, pid, documentPID string, provider string, eitemType entities.EItemType) {
	t.Helper()
	createdBy := entities.CreatedBy{Type: entities.CreatedByTypeImport, Value: provider}
	if provider == "" {
		createdBy = entities.CreatedBy{Type: entities.CreatedByTypeUser, Value: "librarian"}
	}
	require.NoError(t, repo.Create(&entities.EItem{
		PID:         pid,
		UUID:        "uuid-" + pid,
		DocumentPID: documentPID,
		Metadata: entities.EItemMetadata{
			PID:         pid,
			DocumentPID: documentPID,
			EItemType:   eitemType,
			CreatedBy:   createdBy,
		},
	}))
}

func TestReconcile_CreatesWhenNoneExist(t *testing.T) {
	r, repo := setupReconciler(t, false)
	doc := testDocument("docid-1")

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionCreate, report.Action)
	require.NotNil(t, report.EItem)
	assert.Equal(t, entities.EItemTypeEBook, report.EItem.EItemType)
	assert.False(t, report.EItem.OpenAccess)
	require.Len(t, report.EItem.URLs, 1)
	assert.True(t, report.EItem.URLs[0].LoginRequired)
	// Only the DOI crosses over from the document identifiers.
	require.Len(t, report.EItem.Identifiers, 1)
	assert.Equal(t, entities.SchemeDOI, report.EItem.Identifiers[0].Scheme)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, report.PID, stored[0].PID)
	assert.Equal(t, "springer", stored[0].Metadata.ImportProvider())
}

func TestReconcile_UpdatesSameProviderInPlace(t *testing.T) {
	r, repo := setupReconciler(t, false)
	doc := testDocument("docid-1")
	seedEItem(t, repo, "eitid-1", "docid-1", "springer", entities.EItemTypeEBook)

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionUpdate, report.Action)
	assert.Equal(t, "eitid-1", report.PID)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "e-book", stored[0].Metadata.Description)
	require.Len(t, stored[0].Metadata.URLs, 1)
	assert.Equal(t, "https://ebooks.example.org/cm", stored[0].Metadata.URLs[0].Value)
}

func TestReconcile_ReplacesLowerPriorityProvider(t *testing.T) {
	r, repo := setupReconciler(t, true)
	doc := testDocument("docid-1")
	seedEItem(t, repo, "eitid-1", "docid-1", "safari", entities.EItemTypeEBook)

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionReplace, report.Action)
	assert.Contains(t, report.DeletedPIDs, "eitid-1")

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "springer", stored[0].Metadata.ImportProvider())
}

func TestReconcile_IgnoresWhenExistingHasHigherPriority(t *testing.T) {
	r, repo := setupReconciler(t, true)
	doc := testDocument("docid-1")
	seedEItem(t, repo, "eitid-1", "docid-1", "cds", entities.EItemTypeEBook)

	report := r.Reconcile(doc, "safari")

	assert.Equal(t, ActionNone, report.Action)
	assert.Empty(t, report.DeletedPIDs)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "cds", stored[0].Metadata.ImportProvider())
}

func TestReconcile_CreatesAlongsideWhenNotPrioritySensitive(t *testing.T) {
	r, repo := setupReconciler(t, false)
	doc := testDocument("docid-1")
	seedEItem(t, repo, "eitid-1", "docid-1", "safari", entities.EItemTypeEBook)

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionCreate, report.Action)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestReconcile_CollapsesConflictingDuplicates(t *testing.T) {
	r, repo := setupReconciler(t, false)
	doc := testDocument("docid-1")
	seedEItem(t, repo, "eitid-1", "docid-1", "ebl", entities.EItemTypeEBook)
	seedEItem(t, repo, "eitid-2", "docid-1", "safari", entities.EItemTypeEBook)

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionReplace, report.Action)
	assert.ElementsMatch(t, []string{"eitid-1", "eitid-2"}, report.DeletedPIDs)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "springer", stored[0].Metadata.ImportProvider())
}

func TestReconcile_NeverTouchesUserCreatedItems(t *testing.T) {
	r, repo := setupReconciler(t, true)
	doc := testDocument("docid-1")
	seedEItem(t, repo, "eitid-1", "docid-1", "", entities.EItemTypeEBook)

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionCreate, report.Action)
	assert.Empty(t, report.DeletedPIDs)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestReconcile_DifferentTypeCoexists(t *testing.T) {
	r, repo := setupReconciler(t, false)
	doc := testDocument("docid-1")
	seedEItem(t, repo, "eitid-1", "docid-1", "springer", entities.EItemTypeAudiobook)

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionCreate, report.Action)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestReconcile_PrioritySweepClearsLesserProviders(t *testing.T) {
	r, repo := setupReconciler(t, true)
	doc := testDocument("docid-1")
	// Different type, so it survives the decision but not the sweep.
	seedEItem(t, repo, "eitid-1", "docid-1", "safari", entities.EItemTypeAudiobook)
	seedEItem(t, repo, "eitid-2", "docid-1", "", entities.EItemTypeAudiobook)

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionCreate, report.Action)
	assert.Equal(t, []string{"eitid-1"}, report.DeletedPIDs)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2) // user item + freshly created one
}

func TestReconcile_NoCandidateOnlySweeps(t *testing.T) {
	r, repo := setupReconciler(t, true)
	doc := testDocument("docid-1")
	doc.Metadata.EItem = nil
	seedEItem(t, repo, "eitid-1", "docid-1", "safari", entities.EItemTypeEBook)

	report := r.Reconcile(doc, "springer")

	assert.Equal(t, ActionNone, report.Action)
	assert.Equal(t, []string{"eitid-1"}, report.DeletedPIDs)
}

func TestDelete_RemovesCurrentProviderItems(t *testing.T) {
	r, repo := setupReconciler(t, false)
	seedEItem(t, repo, "eitid-1", "docid-1", "ebl", entities.EItemTypeEBook)
	seedEItem(t, repo, "eitid-2", "docid-1", "springer", entities.EItemTypeEBook)
	seedEItem(t, repo, "eitid-3", "docid-1", "", entities.EItemTypeEBook)

	report := r.Delete("docid-1", "ebl")

	assert.Equal(t, ActionDelete, report.Action)
	assert.Equal(t, []string{"eitid-1"}, report.DeletedPIDs)

	stored, err := repo.ByDocument("docid-1")
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestDelete_NothingToDelete(t *testing.T) {
	r, _ := setupReconciler(t, false)

	report := r.Delete("docid-1", "ebl")

	assert.Equal(t, ActionNone, report.Action)
	assert.Empty(t, report.DeletedPIDs)
}
