package vocabulary

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher serves fixed key lists and counts fetches per type.
type countingFetcher struct {
	keys    map[string][]string
	fetches map[string]int
}

func newCountingFetcher(keys map[string][]string) *countingFetcher {
	return &countingFetcher{keys: keys, fetches: map[string]int{}}
}

func (f *countingFetcher) FetchKeys(vocabType, _ string) ([]string, error) {
	f.fetches[vocabType]++
	keys, ok := f.keys[vocabType]
	if !ok {
		return nil, errors.New("no such vocabulary")
	}
	return keys, nil
}

func TestValidate_WalksNestedObjectsAndArrays(t *testing.T) {
	fetcher := newCountingFetcher(map[string][]string{
		"identifier_scheme": {"ISBN", "DOI"},
		"author_role":       {"AUTHOR", "EDITOR"},
	})
	v := NewValidator(map[string]KeyFetcher{SourceJSON: fetcher})

	defs := Definitions{
		"identifiers": {Nested: Definitions{
			"scheme": {Source: SourceJSON, Type: "identifier_scheme"},
		}},
		"authors": {Nested: Definitions{
			"roles": {Source: SourceJSON, Type: "author_role"},
		}},
	}

	record := map[string]any{
		"title": "anything goes for undeclared fields",
		"identifiers": []any{
			map[string]any{"scheme": "ISBN", "value": "9781617291784"},
			map[string]any{"scheme": "DOI", "value": "10.1000/x"},
		},
		"authors": []any{
			map[string]any{"full_name": "Doe, Jane", "roles": []any{"AUTHOR", "EDITOR"}},
		},
	}

	require.NoError(t, v.Validate(defs, record))
}

func TestValidate_RejectsUnknownValue(t *testing.T) {
	fetcher := newCountingFetcher(map[string][]string{
		"identifier_scheme": {"ISBN"},
	})
	v := NewValidator(map[string]KeyFetcher{SourceJSON: fetcher})

	defs := Definitions{
		"identifiers": {Nested: Definitions{
			"scheme": {Source: SourceJSON, Type: "identifier_scheme"},
		}},
	}
	record := map[string]any{
		"identifiers": []any{map[string]any{"scheme": "OCLC"}},
	}

	err := v.Validate(defs, record)
	require.Error(t, err)

	var vocabErr *Error
	require.ErrorAs(t, err, &vocabErr)
	assert.Equal(t, "OCLC", vocabErr.Value)
	assert.Equal(t, "identifier_scheme", vocabErr.VocabType)
}

func TestValidate_UnknownSourceIsConfigurationError(t *testing.T) {
	v := NewValidator(map[string]KeyFetcher{SourceJSON: newCountingFetcher(nil)})

	defs := Definitions{
		"tags": {Source: "elasticsearch", Type: "tag"},
	}
	err := v.Validate(defs, map[string]any{"tags": []any{"LEGACY"}})

	var vocabErr *Error
	require.ErrorAs(t, err, &vocabErr)
	assert.Contains(t, vocabErr.Reason, "unknown source")
}

func TestValidate_CachesKeySetPerType(t *testing.T) {
	fetcher := newCountingFetcher(map[string][]string{
		"tag": {"LEGACY", "DONATION"},
	})
	v := NewValidator(map[string]KeyFetcher{SourceJSON: fetcher})

	defs := Definitions{"tags": {Source: SourceJSON, Type: "tag"}}

	require.NoError(t, v.Validate(defs, map[string]any{"tags": []any{"LEGACY"}}))
	require.NoError(t, v.Validate(defs, map[string]any{"tags": []any{"DONATION"}}))
	assert.Equal(t, 1, fetcher.fetches["tag"], "second value must hit the cache")

	v.Reset()
	require.NoError(t, v.Validate(defs, map[string]any{"tags": []any{"LEGACY"}}))
	assert.Equal(t, 2, fetcher.fetches["tag"])
}

// memberStore fakes the search-backed vocabulary repository.
type memberStore map[string]bool

func (s memberStore) HasKey(vocabType, key string) (bool, error) {
	return s[vocabType+"/"+key], nil
}

func TestSearchSource_ChecksMembershipPerKey(t *testing.T) {
	store := memberStore{"license/CC-BY-4.0": true}
	v := NewValidator(DefaultFetchers(store))

	defs := Definitions{
		"licenses": {Nested: Definitions{
			"license": {Source: SourceSearch, Type: "license"},
		}},
	}

	ok := map[string]any{"licenses": []any{map[string]any{"license": "CC-BY-4.0"}}}
	require.NoError(t, v.Validate(defs, ok))

	bad := map[string]any{"licenses": []any{map[string]any{"license": "CC-BY-3.0"}}}
	var vocabErr *Error
	require.ErrorAs(t, v.Validate(defs, bad), &vocabErr)
	assert.Equal(t, "CC-BY-3.0", vocabErr.Value)
}

func TestDocumentDefinitions_AgainstBundledVocabularies(t *testing.T) {
	v := NewValidator(DefaultFetchers(memberStore{}))

	record := map[string]any{
		"identifiers": []any{
			map[string]any{"scheme": "ISBN", "value": "9781617291784"},
		},
		"authors": []any{
			map[string]any{"full_name": "Doe, Jane", "type": "PERSON", "roles": []any{"AUTHOR"}},
		},
	}
	require.NoError(t, v.Validate(DocumentDefinitions, record))

	record["identifiers"] = []any{map[string]any{"scheme": "LCCN"}}
	assert.Error(t, v.Validate(DocumentDefinitions, record))
}
