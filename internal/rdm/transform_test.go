package rdm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openils/importer/internal/entities"
)

const sampleRecord = `{
  "id": "abcde-12345",
  "parent": {"id": "fghij-67890"},
  "pids": {"doi": {"identifier": "10.17181/abcde-12345"}},
  "access": {"record": "public"},
  "files": {
    "entries": {
      "thesis.pdf": {"ext": "pdf", "links": {"self": "https://repo.example.org/api/records/abcde-12345/files/thesis.pdf"}},
      "data.csv": {"ext": "csv", "links": {"self": "https://repo.example.org/api/records/abcde-12345/files/data.csv"}}
    }
  },
  "custom_fields": {
    "meeting:meeting": {
      "title": "28th International Conference on Computing",
      "place": "Geneva, Switzerland",
      "dates": "2024-10-19 - 2024-10-25",
      "identifiers": [{"scheme": "inspire", "identifier": "C24-10-19"}]
    },
    "journal:journal": {"title": "JINST", "volume": "19", "pages": "1-12"},
    "imprint:imprint": {"place": "Geneva", "edition": "2nd"},
    "cern:accelerators": [{"id": "LHC"}],
    "cern:experiments": [{"title": {"en": "ATLAS"}}]
  },
  "internal_notes": [{"note": "uploaded by the library"}],
  "metadata": {
    "title": "Track Reconstruction at High Pile-up",
    "description": "A study of tracking performance.",
    "publication_date": "2024-06-01",
    "publisher": "CERN",
    "resource_type": {"id": "publication-thesis"},
    "creators": [
      {
        "person_or_org": {
          "name": "Doe, Jane",
          "type": "personal",
          "identifiers": [
            {"scheme": "orcid", "identifier": "0000-0002-1825-0097"},
            {"scheme": "gnd", "identifier": "ignored"}
          ]
        },
        "role": {"id": "supervisor"},
        "affiliations": [{"name": "CERN"}]
      },
      {"person_or_org": {"name": "ATLAS Collaboration", "type": "organisational"}}
    ],
    "additional_titles": [
      {"title": "Rekonstrukcja sladow", "type": {"id": "subtitle"}, "lang": {"id": "pol"}},
      {"title": "A tracking study", "type": {"id": "alternative-title"}}
    ],
    "additional_descriptions": [
      {"description": "Extended abstract.", "type": {"id": "abstract"}},
      {"description": "120 pages", "type": {"id": "physical-description"}},
      {"description": "1. Intro", "type": {"id": "table-of-contents"}},
      {"description": "CERN Yellow Reports", "type": {"id": "series-information"}}
    ],
    "identifiers": [
      {"scheme": "arxiv", "identifier": "2406.01234"},
      {"scheme": "isbn", "identifier": "9789290836645"},
      {"scheme": "url", "identifier": "https://example.org/landing"},
      {"scheme": "lcds", "identifier": "2901234"}
    ],
    "related_identifiers": [{"scheme": "issn", "identifier": "2519-8068"}],
    "subjects": [{"subject": "particle tracking"}],
    "languages": [{"id": "eng"}],
    "rights": [{"id": "cc-by-4.0"}]
  }
}`

func TestTransform_FullRecord(t *testing.T) {
	records, err := ParseRecords(strings.NewReader(sampleRecord))
	require.NoError(t, err)
	require.Len(t, records, 1)

	doc, err := Transform(records[0])
	require.NoError(t, err)

	assert.Equal(t, "Track Reconstruction at High Pile-up", doc.Title)
	assert.Equal(t, "A study of tracking performance.", doc.Abstract)
	assert.Equal(t, entities.DocumentTypeBook, doc.DocumentType)
	assert.Equal(t, "2024", doc.PublicationYear)
	assert.Equal(t, "2nd", doc.Edition)
	assert.Equal(t, "SzGeCERN", doc.AgencyCode)
	assert.Equal(t, "fghij-67890", doc.RDMPID)
	assert.Equal(t, "2901234", doc.LegacyRecID)
	assert.False(t, doc.Restricted)
	assert.Equal(t, []string{"THESIS"}, doc.Tags)

	// DOI from pids first, then mapped identifier schemes
	require.Len(t, doc.Identifiers, 2)
	assert.Equal(t, entities.Identifier{Scheme: "DOI", Value: "10.17181/abcde-12345"}, doc.Identifiers[0])
	assert.Equal(t, entities.Identifier{Scheme: "ISBN", Value: "9789290836645"}, doc.Identifiers[1])

	// record id plus mapped alt schemes
	require.Len(t, doc.AlternativeIdentifiers, 2)
	assert.Equal(t, entities.Identifier{Scheme: "CDS", Value: "abcde-12345"}, doc.AlternativeIdentifiers[0])
	assert.Equal(t, entities.Identifier{Scheme: "ARXIV", Value: "2406.01234"}, doc.AlternativeIdentifiers[1])

	require.Len(t, doc.Authors, 2)
	assert.Equal(t, "Doe, Jane", doc.Authors[0].FullName)
	assert.Equal(t, "PERSON", doc.Authors[0].Type)
	assert.Equal(t, []string{"SUPERVISOR"}, doc.Authors[0].Roles)
	require.Len(t, doc.Authors[0].Identifiers, 1)
	assert.Equal(t, "ORCID", doc.Authors[0].Identifiers[0].Scheme)
	assert.Equal(t, "ORGANISATION", doc.Authors[1].Type)

	require.Len(t, doc.AlternativeTitles, 2)
	assert.Equal(t, entities.AlternativeTitle{
		Value: "Rekonstrukcja sladow", Type: "TRANSLATED_SUBTITLE", Language: "pol",
	}, doc.AlternativeTitles[0])
	assert.Equal(t, "ALTERNATIVE_TITLE", doc.AlternativeTitles[1].Type)

	assert.Equal(t, []string{"Extended abstract."}, doc.AlternativeAbstracts)
	assert.Equal(t, "120 pages", doc.PhysicalDescription)
	assert.Equal(t, []string{"1. Intro"}, doc.TableOfContent)

	require.Len(t, doc.Serial, 2)
	assert.Equal(t, "CERN Yellow Reports", doc.Serial[0].Title)
	assert.Equal(t, "Series 2519-8068", doc.Serial[1].Title)
	require.Len(t, doc.Serial[1].Identifiers, 1)
	assert.Equal(t, "ISSN", doc.Serial[1].Identifiers[0].Scheme)

	assert.Equal(t, []string{"particle tracking"}, doc.Keywords)
	assert.Equal(t, []string{"ENG"}, doc.Languages)
	require.Len(t, doc.Licenses, 1)
	assert.Equal(t, "CC-BY-4.0", doc.Licenses[0].License.ID)
	require.Len(t, doc.InternalNotes, 1)

	require.Len(t, doc.ConferenceInfo, 1)
	assert.Equal(t, "Geneva, Switzerland", doc.ConferenceInfo[0].Place)
	require.Len(t, doc.ConferenceInfo[0].Identifiers, 1)
	assert.Equal(t, "INSPIRE_CNUM", doc.ConferenceInfo[0].Identifiers[0].Scheme)

	require.Len(t, doc.PublicationInfo, 1)
	assert.Equal(t, "JINST", doc.PublicationInfo[0].JournalTitle)

	require.NotNil(t, doc.Imprint)
	assert.Equal(t, "CERN", doc.Imprint.Publisher)
	assert.Equal(t, "Geneva", doc.Imprint.Place)

	assert.Equal(t, "LHC", doc.Extensions["unit_accelerator"])
	assert.Equal(t, []string{"ATLAS"}, doc.Extensions["unit_experiment"])

	require.Len(t, doc.URLs, 1)
	assert.Equal(t, "https://example.org/landing", doc.URLs[0].Value)

	// only documents, not data files, become eitem urls
	require.NotNil(t, doc.EItem)
	require.Len(t, doc.EItem.URLs, 1)
	assert.Contains(t, doc.EItem.URLs[0].Value, "thesis.pdf")
	assert.Equal(t, "e-book", doc.EItem.URLs[0].Description)
}

func TestTransform_MissingCreators(t *testing.T) {
	records, err := ParseRecords(strings.NewReader(`{
	  "id": "x", "metadata": {"title": "T", "publication_date": "2024"}
	}`))
	require.NoError(t, err)

	_, err = Transform(records[0])

	var missing *entities.MissingRequiredField
	require.ErrorAs(t, err, &missing)
	assert.Contains(t, err.Error(), "creators")
}

func TestTransform_UnknownAuthorRoleRejected(t *testing.T) {
	records, err := ParseRecords(strings.NewReader(`{
	  "id": "x",
	  "metadata": {
	    "title": "T",
	    "publication_date": "2024-01-01",
	    "creators": [{"person_or_org": {"name": "N", "type": "personal"}, "role": {"id": "astronaut"}}]
	  }
	}`))
	require.NoError(t, err)

	_, err = Transform(records[0])

	var unexpected *entities.UnexpectedValue
	require.ErrorAs(t, err, &unexpected)
}

func TestTransform_RestrictedAccess(t *testing.T) {
	records, err := ParseRecords(strings.NewReader(`{
	  "id": "x",
	  "access": {"record": "restricted"},
	  "metadata": {
	    "title": "T",
	    "publication_date": "2024-01-01",
	    "creators": [{"person_or_org": {"name": "N", "type": "personal"}}]
	  }
	}`))
	require.NoError(t, err)

	doc, err := Transform(records[0])

	require.NoError(t, err)
	assert.True(t, doc.Restricted)
}

func TestParseRecords_List(t *testing.T) {
	records, err := ParseRecords(strings.NewReader(`[
	  {"id": "a", "metadata": {"title": "A"}},
	  {"id": "b", "metadata": {"title": "B"}}
	]`))

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "b", records[1].ID)
}
