package vocabulary

import (
	"embed"
	"encoding/json"
	"fmt"
)

//go:embed data/*.json
var vocabularyFiles embed.FS

// typeFilenames maps a vocabulary type to its bundled data file.
var typeFilenames = map[string]string{
	"alternative_identifier_scheme":  "alternative_identifier_schemes.json",
	"alternative_title_type":         "alternative_title_types.json",
	"affiliation_identifier_scheme":  "author_affiliation_identifier_schemes.json",
	"author_identifier_scheme":       "author_identifier_schemes.json",
	"author_role":                    "author_roles.json",
	"author_type":                    "author_types.json",
	"conference_identifier_scheme":   "conference_identifier_schemes.json",
	"doc_identifiers_materials":      "document_identifiers_materials.json",
	"doc_subjects":                   "document_subjects.json",
	"identifier_scheme":              "identifier_schemes.json",
	"series_identifier_scheme":       "series_identifier_schemes.json",
	"series_url_access_restriction":  "series_url_access_restrictions.json",
	"tag":                            "tags.json",
}

type vocabFile []struct {
	Key string `json:"key"`
}

// JSONFetcher serves vocabularies from the bundled JSON files, returning
// the full key list at once so later lookups amortize to set membership.
type JSONFetcher struct{}

// FetchKeys implements KeyFetcher.
func (JSONFetcher) FetchKeys(vocabType, _ string) ([]string, error) {
	filename, ok := typeFilenames[vocabType]
	if !ok {
		return nil, fmt.Errorf("no data file for vocabulary type %q", vocabType)
	}
	raw, err := vocabularyFiles.ReadFile("data/" + filename)
	if err != nil {
		return nil, err
	}
	var entries vocabFile
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filename, err)
	}
	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		keys = append(keys, entry.Key)
	}
	return keys, nil
}

// EntryStore is the repository surface the search fetcher needs.
type EntryStore interface {
	HasKey(vocabType, key string) (bool, error)
}

// SearchFetcher checks key membership against the vocabulary store, one key
// at a time.
type SearchFetcher struct {
	Store EntryStore
}

// FetchKeys implements KeyFetcher.
func (f SearchFetcher) FetchKeys(vocabType, key string) ([]string, error) {
	ok, err := f.Store.HasKey(vocabType, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return []string{key}, nil
}

// DefaultFetchers wires the two supported sources. Any other source name in
// a definition is a configuration error surfaced by the validator.
func DefaultFetchers(store EntryStore) map[string]KeyFetcher {
	return map[string]KeyFetcher{
		SourceJSON:   JSONFetcher{},
		SourceSearch: SearchFetcher{Store: store},
	}
}
