package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/openils/importer/internal/database/pids"
	"github.com/openils/importer/internal/database/relations"
	seriesdb "github.com/openils/importer/internal/database/series"
	"github.com/openils/importer/internal/entities"
	"github.com/openils/importer/internal/vocabulary"
)

func setupImporter(t *testing.T) (*Importer, *seriesdb.Repository, *relations.Repository) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&entities.Series{},
		&entities.SeriesSearchEntry{},
		&entities.Relation{},
		&entities.PersistentIdentifier{},
		&entities.PIDSequence{},
	))

	ser := seriesdb.NewRepository(db)
	rels := relations.NewRepository(db)
	vocab := vocabulary.NewValidator(vocabulary.DefaultFetchers(nil))
	return NewImporter(ser, rels, pids.NewRepository(db), vocab), ser, rels
}

func seedSeries(t *testing.T, repo *seriesdb.Repository, pid string, meta entities.SeriesMetadata) {
	t.Helper()
	s := &entities.Series{PID: pid, UUID: "uuid-" + pid, Metadata: meta}
	require.NoError(t, repo.Create(s))
	require.NoError(t, repo.Index(s))
}

func importDocument(pid string) *entities.Document {
	return &entities.Document{PID: pid, UUID: "uuid-" + pid}
}

func TestImportSeries_CreatesWhenNothingMatches(t *testing.T) {
	imp, repo, rels := setupImporter(t)
	doc := importDocument("docid-1")

	reports, err := imp.ImportSeries(doc, []entities.SeriesDescriptor{{
		Title:  "Graduate Texts in Mathematics Series",
		Volume: "52",
		Identifiers: []entities.Identifier{
			{Scheme: entities.SchemeISSN, Value: "0072-5285"},
		},
	}}, "springer")
	require.NoError(t, err)
	require.Len(t, reports, 1)

	report := reports[0]
	assert.Equal(t, ActionCreate, report.Action)
	require.NotNil(t, report.Series)
	// The trailing "Series" is cut, the capitalization kept.
	assert.Equal(t, "Graduate Texts in Mathematics", report.Series.Title)
	assert.Equal(t, entities.ModeOfIssuanceSerial, report.Series.ModeOfIssuance)
	assert.Equal(t, "springer", report.Series.CreatedBy.Value)

	created, err := repo.GetByPID(report.PID)
	require.NoError(t, err)
	assert.Equal(t, "Graduate Texts in Mathematics", created.Metadata.Title)

	attached, err := rels.ByChild("docid-1")
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, report.PID, attached[0].ParentPID)
	assert.Equal(t, entities.RelationSerial, attached[0].Type)
	assert.Equal(t, "52", attached[0].Volume)
}

func TestImportSeries_AttachesByISSN(t *testing.T) {
	imp, repo, rels := setupImporter(t)
	doc := importDocument("docid-1")

	seedSeries(t, repo, "serid-1", entities.SeriesMetadata{
		Title:          "Lecture Notes in Physics",
		ModeOfIssuance: entities.ModeOfIssuanceSerial,
		SeriesType:     "SERIAL",
		Identifiers: []entities.Identifier{
			{Scheme: entities.SchemeISSN, Value: "0075-8450"},
		},
	})

	reports, err := imp.ImportSeries(doc, []entities.SeriesDescriptor{{
		Title:  "Lecture notes in physics",
		Volume: "998",
		Identifiers: []entities.Identifier{
			{Scheme: entities.SchemeISSN, Value: "0075-8450"},
			{Scheme: entities.SchemeISSN, Value: "1616-6361"},
		},
	}}, "springer")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ActionUpdate, reports[0].Action)
	assert.Equal(t, "serid-1", reports[0].PID)

	// The electronic ISSN is unioned into the stored identifiers.
	updated, err := repo.GetByPID("serid-1")
	require.NoError(t, err)
	assert.Len(t, updated.Metadata.Identifiers, 2)

	attached, err := rels.ByChild("docid-1")
	require.NoError(t, err)
	require.Len(t, attached, 1)
	assert.Equal(t, "998", attached[0].Volume)
}

func TestImportSeries_TitleMatchSurvivesSuffixNoise(t *testing.T) {
	imp, repo, _ := setupImporter(t)
	doc := importDocument("docid-1")

	seedSeries(t, repo, "serid-1", entities.SeriesMetadata{
		Title:          "International Series of Numerical Mathematics",
		ModeOfIssuance: entities.ModeOfIssuanceSerial,
		SeriesType:     "SERIAL",
	})

	reports, err := imp.ImportSeries(doc, []entities.SeriesDescriptor{{
		Title: "International  Series of Numerical Mathematics   ser",
	}}, "ebl")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ActionUpdate, reports[0].Action)
	assert.Equal(t, "serid-1", reports[0].PID)
}

func TestImportSeries_NonSerialCandidatesDropped(t *testing.T) {
	imp, repo, _ := setupImporter(t)
	doc := importDocument("docid-1")

	seedSeries(t, repo, "serid-1", entities.SeriesMetadata{
		Title:          "Handbook of Physics",
		ModeOfIssuance: entities.ModeOfIssuanceMultipart,
	})

	reports, err := imp.ImportSeries(doc, []entities.SeriesDescriptor{{
		Title: "Handbook of Physics",
	}}, "ebl")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ActionCreate, reports[0].Action)
	assert.NotEqual(t, "serid-1", reports[0].PID)
}

func TestImportSeries_ConflictingISSNFallsThroughToCreate(t *testing.T) {
	imp, repo, _ := setupImporter(t)
	doc := importDocument("docid-1")

	// Found through the shared ISBN, but the titles differ and both sides
	// carry ISSNs with no overlap.
	isbn := entities.Identifier{Scheme: entities.SchemeISBN, Value: "9783030997762"}
	seedSeries(t, repo, "serid-1", entities.SeriesMetadata{
		Title:          "Springer Proceedings",
		ModeOfIssuance: entities.ModeOfIssuanceSerial,
		SeriesType:     "SERIAL",
		Identifiers: []entities.Identifier{
			isbn,
			{Scheme: entities.SchemeISSN, Value: "9999-9999"},
		},
	})

	reports, err := imp.ImportSeries(doc, []entities.SeriesDescriptor{{
		Title: "Springer Proceedings in Mathematics",
		Identifiers: []entities.Identifier{
			isbn,
			{Scheme: entities.SchemeISSN, Value: "2190-5614"},
		},
	}}, "springer")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ActionCreate, reports[0].Action)
}

func TestImportSeries_ConsistentFieldsUpdateDespiteTitleDrift(t *testing.T) {
	imp, repo, _ := setupImporter(t)
	doc := importDocument("docid-1")

	// Found through the shared ISBN; titles drifted, but publisher and
	// publication year agree wherever both sides carry them.
	isbn := entities.Identifier{Scheme: entities.SchemeISBN, Value: "9783030997762"}
	seedSeries(t, repo, "serid-1", entities.SeriesMetadata{
		Title:          "Springer Proceedings",
		ModeOfIssuance: entities.ModeOfIssuanceSerial,
		SeriesType:     "SERIAL",
		Publisher:      "Springer",
		Identifiers:    []entities.Identifier{isbn},
	})

	reports, err := imp.ImportSeries(doc, []entities.SeriesDescriptor{{
		Title:       "Springer Proceedings in Mathematics",
		Publisher:   "Springer",
		Identifiers: []entities.Identifier{isbn},
	}}, "springer")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, ActionUpdate, reports[0].Action)
	assert.Equal(t, "serid-1", reports[0].PID)
}

func TestImportSeries_MultipleMatchesFail(t *testing.T) {
	imp, repo, _ := setupImporter(t)
	doc := importDocument("docid-1")

	issn := entities.Identifier{Scheme: entities.SchemeISSN, Value: "0072-5285"}
	seedSeries(t, repo, "serid-1", entities.SeriesMetadata{
		Title:          "Graduate Texts in Mathematics",
		ModeOfIssuance: entities.ModeOfIssuanceSerial,
		SeriesType:     "SERIAL",
		Identifiers:    []entities.Identifier{issn},
	})
	seedSeries(t, repo, "serid-2", entities.SeriesMetadata{
		Title:          "Graduate Texts in Mathematics",
		ModeOfIssuance: entities.ModeOfIssuanceSerial,
		SeriesType:     "SERIAL",
		Identifiers:    []entities.Identifier{issn},
	})

	reports, err := imp.ImportSeries(doc, []entities.SeriesDescriptor{{
		Title:       "Graduate Texts in Mathematics",
		Identifiers: []entities.Identifier{issn},
	}}, "springer")

	var seriesErr *entities.SeriesImportError
	require.ErrorAs(t, err, &seriesErr)
	require.Len(t, reports, 1)
	assert.Equal(t, ActionError, reports[0].Action)
	assert.ElementsMatch(t, []string{"serid-1", "serid-2"}, reports[0].Duplicates)
}

func TestImportSeries_AttachIsIdempotent(t *testing.T) {
	imp, repo, rels := setupImporter(t)
	doc := importDocument("docid-1")

	seedSeries(t, repo, "serid-1", entities.SeriesMetadata{
		Title:          "Lecture Notes in Physics",
		ModeOfIssuance: entities.ModeOfIssuanceSerial,
		SeriesType:     "SERIAL",
	})

	descriptor := []entities.SeriesDescriptor{{Title: "Lecture Notes in Physics", Volume: "7"}}
	_, err := imp.ImportSeries(doc, descriptor, "springer")
	require.NoError(t, err)
	_, err = imp.ImportSeries(doc, descriptor, "springer")
	require.NoError(t, err)

	attached, err := rels.ByChild("docid-1")
	require.NoError(t, err)
	assert.Len(t, attached, 1)
}

func TestPreviewSeries_WritesNothing(t *testing.T) {
	imp, repo, rels := setupImporter(t)

	seedSeries(t, repo, "serid-1", entities.SeriesMetadata{
		Title:          "Lecture Notes in Physics",
		ModeOfIssuance: entities.ModeOfIssuanceSerial,
		SeriesType:     "SERIAL",
	})

	reports, err := imp.PreviewSeries([]entities.SeriesDescriptor{
		{Title: "Lecture Notes in Physics", Identifiers: []entities.Identifier{
			{Scheme: entities.SchemeISSN, Value: "0075-8450"},
		}},
		{Title: "A Series Nobody Has"},
	}, "springer")
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, ActionUpdate, reports[0].Action)
	assert.Equal(t, ActionCreate, reports[1].Action)

	// Neither the identifier union nor the create touched the store.
	stored, err := repo.GetByPID("serid-1")
	require.NoError(t, err)
	assert.Empty(t, stored.Metadata.Identifiers)
	attached, err := rels.ByChild("docid-1")
	require.NoError(t, err)
	assert.Empty(t, attached)
}

func TestNormalizeTitle(t *testing.T) {
	assert.Equal(t, "international series of numerical mathematics",
		NormalizeTitle("International   Series of Numerical Mathematics   series"))
	assert.Equal(t, "lecture notes in physics",
		NormalizeTitle("Lecture Notes in Physics Ser"))
	assert.Equal(t, "plain title", NormalizeTitle("  Plain  Title "))
}
