package importer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openils/importer/internal/config"
	"github.com/openils/importer/internal/database/documents"
	eitemsdb "github.com/openils/importer/internal/database/eitems"
	"github.com/openils/importer/internal/database/relations"
	seriesdb "github.com/openils/importer/internal/database/series"
	"github.com/openils/importer/internal/entities"
	"github.com/openils/importer/internal/vocabulary"
)

func setupImporter(t *testing.T) (*Importer, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entities.Document{},
		&entities.DocumentSearchEntry{},
		&entities.DocumentReference{},
		&entities.EItem{},
		&entities.Series{},
		&entities.SeriesSearchEntry{},
		&entities.Relation{},
		&entities.PersistentIdentifier{},
		&entities.PIDSequence{},
	))

	cfg := config.Importer{
		Providers: map[string]config.Provider{
			"cds":      {Priority: 1, AgencyCode: "SzGeCERN", CanDelete: true, EItemOpenAccess: true},
			"springer": {Priority: 2, AgencyCode: "DE-He213", EItemLoginRequired: true},
			"ebl":      {Priority: 3, AgencyCode: "MiAaPQ", CanDelete: true, EItemLoginRequired: true},
		},
		PrioritySensitive: true,
	}
	vocab := vocabulary.NewValidator(vocabulary.DefaultFetchers(nil))
	return New(db, cfg, vocab), db
}

func springerRecord() *entities.DocumentMetadata {
	return &entities.DocumentMetadata{
		Title: "Introduction to Smooth Manifolds",
		Authors: []entities.Author{
			{FullName: "Lee, John M."},
		},
		Identifiers: []entities.Identifier{
			{Scheme: entities.SchemeISBN, Value: "9781441999818"},
			{Scheme: entities.SchemeDOI, Value: "10.1007/978-1-4419-9982-5"},
		},
		PublicationYear: "2012",
		DocumentType:    entities.DocumentTypeBook,
		AgencyCode:      "DE-He213",
		ProviderRecID:   "978-1-4419-9982-5",
		EItem: &entities.EItemCandidate{
			Type:        entities.EItemTypeEBook,
			URLs:        []entities.URL{{Value: "https://link.example.org/smooth-manifolds"}},
			Description: "e-book",
		},
		Serial: []entities.SeriesDescriptor{
			{
				Title:  "Graduate Texts in Mathematics",
				Volume: "218",
				Identifiers: []entities.Identifier{
					{Scheme: entities.SchemeISSN, Value: "0072-5285"},
				},
			},
		},
	}
}

func TestImportRecord_CreatesDocument(t *testing.T) {
	imp, db := setupImporter(t)
	raw := springerRecord()

	report, err := imp.ImportRecord(context.Background(), raw, "springer")

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionCreate, *report.Action)
	assert.Equal(t, "978-1-4419-9982-5", report.EntryRecID)
	assert.Equal(t, "docid-1", report.OutputPID)

	stored, getErr := documents.NewRepository(db).GetByPID("docid-1")
	require.NoError(t, getErr)
	assert.Equal(t, "Introduction to Smooth Manifolds", stored.Metadata.Title)
	require.NotNil(t, stored.Metadata.CreatedBy)
	assert.Equal(t, entities.CreatedByTypeImport, stored.Metadata.CreatedBy.Type)
	assert.Equal(t, "springer", stored.Metadata.CreatedBy.Value)
	// Pipeline helpers never reach storage.
	assert.Nil(t, stored.Metadata.EItem)
	assert.Empty(t, stored.Metadata.AgencyCode)
	assert.Nil(t, stored.Metadata.Serial)
	assert.Empty(t, stored.Metadata.ProviderRecID)

	require.NotNil(t, report.EItem)
	assert.Equal(t, "create", report.EItem.Action)
	eitems, eErr := eitemsdb.NewRepository(db).ByDocument("docid-1")
	require.NoError(t, eErr)
	require.Len(t, eitems, 1)

	require.Len(t, report.Series, 1)
	assert.Equal(t, "create", report.Series[0].Action)
	rels, rErr := relations.NewRepository(db).ByChild("docid-1")
	require.NoError(t, rErr)
	require.Len(t, rels, 1)
	assert.Equal(t, entities.RelationSerial, rels[0].Type)
	assert.Equal(t, "218", rels[0].Volume)
}

func TestImportRecord_UnknownProvider(t *testing.T) {
	imp, _ := setupImporter(t)

	report, err := imp.ImportRecord(context.Background(), springerRecord(), "worldcat")

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionError, *report.Action)
	assert.Contains(t, report.Error, "unknown record provider")
}

func TestImportRecord_AgencyCodeMismatch(t *testing.T) {
	imp, db := setupImporter(t)
	raw := springerRecord()
	raw.AgencyCode = "OCoLC"

	report, err := imp.ImportRecord(context.Background(), raw, "springer")

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionError, *report.Action)
	assert.Contains(t, report.Error, "invalid provider")

	var count int64
	require.NoError(t, db.Model(&entities.Document{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestImportRecord_UpdatesExactMatch(t *testing.T) {
	imp, db := setupImporter(t)
	ctx := context.Background()

	first, err := imp.ImportRecord(ctx, springerRecord(), "springer")
	require.NoError(t, err)
	require.Equal(t, entities.ActionCreate, *first.Action)

	raw := springerRecord()
	raw.Identifiers = append(raw.Identifiers, entities.Identifier{
		Scheme: entities.SchemeISBN, Value: "9781441999825",
	})
	second, err := imp.ImportRecord(ctx, raw, "springer")

	require.NoError(t, err)
	require.NotNil(t, second.Action)
	assert.Equal(t, entities.ActionUpdate, *second.Action)
	assert.Equal(t, first.OutputPID, second.OutputPID)

	stored, getErr := documents.NewRepository(db).GetByPID(first.OutputPID)
	require.NoError(t, getErr)
	assert.Len(t, stored.Metadata.Identifiers, 3)

	// The eitem of the same provider is rebuilt, not duplicated.
	eitems, eErr := eitemsdb.NewRepository(db).ByDocument(first.OutputPID)
	require.NoError(t, eErr)
	assert.Len(t, eitems, 1)

	var count int64
	require.NoError(t, db.Model(&entities.Document{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestImportRecord_AmbiguousMatchMakesNoChanges(t *testing.T) {
	imp, db := setupImporter(t)
	ctx := context.Background()

	seeded, err := imp.ImportRecord(ctx, springerRecord(), "springer")
	require.NoError(t, err)

	// Same DOI, different ISBN, title and publication year: a conflicting
	// candidate the validator refuses to trust.
	raw := springerRecord()
	raw.Title = "Smooth Manifolds and Observables"
	raw.PublicationYear = "2020"
	raw.Identifiers = []entities.Identifier{
		{Scheme: entities.SchemeISBN, Value: "9783030456504"},
		{Scheme: entities.SchemeDOI, Value: "10.1007/978-1-4419-9982-5"},
	}
	report, err := imp.ImportRecord(ctx, raw, "springer")

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionNone, *report.Action)
	require.Len(t, report.PartialMatches, 1)
	assert.Equal(t, seeded.OutputPID, report.PartialMatches[0].PID)
	assert.Equal(t, entities.PartialMatchAmbiguous, report.PartialMatches[0].Type)

	var count int64
	require.NoError(t, db.Model(&entities.Document{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestImportRecord_FuzzyTitleReportsSimilar(t *testing.T) {
	imp, db := setupImporter(t)
	ctx := context.Background()

	seeded, err := imp.ImportRecord(ctx, springerRecord(), "springer")
	require.NoError(t, err)

	// No shared identifiers, nearly identical title and authors.
	raw := springerRecord()
	raw.Title = "Introduction to Smooth Manifold"
	raw.Identifiers = []entities.Identifier{
		{Scheme: entities.SchemeISBN, Value: "9999999999999"},
	}
	raw.Serial = nil
	report, err := imp.ImportRecord(ctx, raw, "springer")

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionNone, *report.Action)
	require.NotEmpty(t, report.PartialMatches)
	assert.Equal(t, seeded.OutputPID, report.PartialMatches[0].PID)
	assert.Equal(t, entities.PartialMatchSimilar, report.PartialMatches[0].Type)

	var count int64
	require.NoError(t, db.Model(&entities.Document{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestImportRecord_Multivolume(t *testing.T) {
	imp, db := setupImporter(t)

	raw := springerRecord()
	raw.Title = "Course of Theoretical Physics"
	raw.Serial = nil
	raw.Migration = &entities.Migration{
		MultivolumeRecord: true,
		Volumes: []entities.VolumeDescriptor{
			{Volume: "1", Title: "Mechanics"},
			{Volume: "5", Title: "Statistical Physics"},
		},
	}

	report, err := imp.ImportRecord(context.Background(), raw, "springer")

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionCreate, *report.Action)

	require.Len(t, report.Series, 1)
	assert.Equal(t, "create", report.Series[0].Action)
	parentPID := report.Series[0].PID

	parent, sErr := seriesdb.NewRepository(db).GetByPID(parentPID)
	require.NoError(t, sErr)
	assert.Equal(t, "Course of Theoretical Physics", parent.Metadata.Title)
	assert.Equal(t, entities.ModeOfIssuanceMultipart, parent.Metadata.ModeOfIssuance)

	children, rErr := relations.NewRepository(db).ByParent(parentPID)
	require.NoError(t, rErr)
	require.Len(t, children, 2)
	for _, rel := range children {
		assert.Equal(t, entities.RelationMultipart, rel.Type)
	}

	var count int64
	require.NoError(t, db.Model(&entities.Document{}).Count(&count).Error)
	assert.EqualValues(t, 2, count)
}

func TestImportRecord_MultivolumeEItemFailureFailsRecord(t *testing.T) {
	imp, db := setupImporter(t)

	raw := springerRecord()
	raw.Title = "Course of Theoretical Physics"
	raw.Serial = nil
	raw.Migration = &entities.Migration{
		MultivolumeRecord: true,
		Volumes: []entities.VolumeDescriptor{
			{Volume: "1", Title: "Mechanics"},
			{Volume: "5", Title: "Statistical Physics"},
		},
	}

	// With eitem storage gone, every volume's reconcile reports an error.
	require.NoError(t, db.Migrator().DropTable(&entities.EItem{}))

	report, err := imp.ImportRecord(context.Background(), raw, "springer")

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionError, *report.Action)
	assert.NotEmpty(t, report.Error)
	require.NotNil(t, report.EItem)
	assert.Equal(t, "error", report.EItem.Action)

	// The record rolled back whole: no parent series, no volume documents.
	var count int64
	require.NoError(t, db.Model(&entities.Document{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&entities.Series{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPreviewImport_WritesNothing(t *testing.T) {
	imp, db := setupImporter(t)

	report, err := imp.PreviewImport(context.Background(), springerRecord(), "springer")

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionCreate, *report.Action)
	require.NotNil(t, report.EItem)
	assert.Equal(t, "create", report.EItem.Action)

	var count int64
	require.NoError(t, db.Model(&entities.Document{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&entities.EItem{}).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, db.Model(&entities.Series{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDeleteRecord_RemovesEItemsAndDocument(t *testing.T) {
	imp, db := setupImporter(t)
	ctx := context.Background()

	raw := springerRecord()
	raw.AgencyCode = "MiAaPQ"
	created, err := imp.ImportRecord(ctx, raw, "ebl")
	require.NoError(t, err)
	require.Equal(t, entities.ActionCreate, *created.Action)

	// Serial relations on their own never block deletion.
	report, err := imp.DeleteRecord(ctx, raw, "ebl", true)

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionDelete, *report.Action)
	assert.Equal(t, created.OutputPID, report.OutputPID)

	_, getErr := documents.NewRepository(db).GetByPID(created.OutputPID)
	assert.Error(t, getErr)

	eitems, eErr := eitemsdb.NewRepository(db).ByDocument(created.OutputPID)
	require.NoError(t, eErr)
	assert.Empty(t, eitems)

	rels, rErr := relations.NewRepository(db).ByChild(created.OutputPID)
	require.NoError(t, rErr)
	assert.Empty(t, rels)
}

func TestDeleteRecord_ProviderWithoutDeletionRights(t *testing.T) {
	imp, _ := setupImporter(t)

	report, err := imp.DeleteRecord(context.Background(), springerRecord(), "springer", true)

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionError, *report.Action)
	assert.Contains(t, report.Error, "not allowed to delete")
}

func TestDeleteRecord_NotDeletableStillSweepsEItems(t *testing.T) {
	imp, db := setupImporter(t)
	ctx := context.Background()

	raw := springerRecord()
	raw.AgencyCode = "MiAaPQ"
	created, err := imp.ImportRecord(ctx, raw, "ebl")
	require.NoError(t, err)

	report, err := imp.DeleteRecord(ctx, raw, "ebl", false)

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionError, *report.Action)
	assert.Contains(t, report.Error, "not marked as deletable")

	// The provider's eitems are gone even though the document stays.
	eitems, eErr := eitemsdb.NewRepository(db).ByDocument(created.OutputPID)
	require.NoError(t, eErr)
	assert.Empty(t, eitems)
	_, getErr := documents.NewRepository(db).GetByPID(created.OutputPID)
	assert.NoError(t, getErr)
}

func TestDeleteRecord_RefusedWhenReferenced(t *testing.T) {
	imp, db := setupImporter(t)
	ctx := context.Background()

	raw := springerRecord()
	raw.AgencyCode = "MiAaPQ"
	created, err := imp.ImportRecord(ctx, raw, "ebl")
	require.NoError(t, err)

	docs := documents.NewRepository(db)
	require.NoError(t, docs.AddReference(created.OutputPID, "loan", "loanid-7"))

	report, err := imp.DeleteRecord(ctx, raw, "ebl", true)

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionError, *report.Action)
	assert.Contains(t, report.Error, "loan")

	_, getErr := docs.GetByPID(created.OutputPID)
	assert.NoError(t, getErr)
}

func TestDeleteRecord_NoMatch(t *testing.T) {
	imp, _ := setupImporter(t)

	report, err := imp.DeleteRecord(context.Background(), func() *entities.DocumentMetadata {
		raw := springerRecord()
		raw.AgencyCode = "MiAaPQ"
		return raw
	}(), "ebl", true)

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionNone, *report.Action)
}

func TestPreviewDelete_WritesNothing(t *testing.T) {
	imp, db := setupImporter(t)
	ctx := context.Background()

	raw := springerRecord()
	raw.AgencyCode = "MiAaPQ"
	created, err := imp.ImportRecord(ctx, raw, "ebl")
	require.NoError(t, err)

	report, err := imp.PreviewDelete(ctx, raw, "ebl", true)

	require.NoError(t, err)
	require.NotNil(t, report.Action)
	assert.Equal(t, entities.ActionDelete, *report.Action)
	assert.Equal(t, created.OutputPID, report.OutputPID)

	_, getErr := documents.NewRepository(db).GetByPID(created.OutputPID)
	assert.NoError(t, getErr)
	eitems, eErr := eitemsdb.NewRepository(db).ByDocument(created.OutputPID)
	require.NoError(t, eErr)
	assert.Len(t, eitems, 1)
}
