// Package vocabulary validates controlled-vocabulary values in incoming
// records.
//
// A definitions map declares, per field path, which vocabulary the field's
// values must belong to. Declared fields are visited recursively (objects)
// and element-wise (arrays); missing declared fields are permitted and
// undeclared extra fields are ignored. Any value not present in its
// vocabulary fails the whole record.
package vocabulary

import (
	"fmt"
	"sync"
)

// Source names where a vocabulary's keys live.
const (
	SourceJSON   = "json"   // file-backed, full key list fetched at once
	SourceSearch = "search" // per-key membership query
)

// Definition declares the vocabulary behind one field. Leaf fields carry
// Type and Source; nested objects carry Nested instead.
type Definition struct {
	Type   string
	Source string
	Nested Definitions
}

// Definitions maps field names to their declarations.
type Definitions map[string]Definition

// Error reports a value missing from its vocabulary, or a broken
// definition.
type Error struct {
	Value     string
	VocabType string
	Reason    string
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("vocabulary %s: %s", e.VocabType, e.Reason)
	}
	return fmt.Sprintf("value %q not found in vocabulary %s", e.Value, e.VocabType)
}

// KeyFetcher resolves vocabulary keys from a source. For SourceJSON the
// key argument is ignored and the full list is returned; for SourceSearch
// only the membership of key is reported.
type KeyFetcher interface {
	FetchKeys(vocabType, key string) ([]string, error)
}

// Validator caches vocabulary key sets per type. One instance per process;
// read-mostly and idempotent on miss, so a plain mutex suffices.
type Validator struct {
	mu       sync.Mutex
	cache    map[string]map[string]struct{}
	fetchers map[string]KeyFetcher
}

// NewValidator creates a validator with the given source fetchers, keyed by
// source name.
func NewValidator(fetchers map[string]KeyFetcher) *Validator {
	return &Validator{
		cache:    make(map[string]map[string]struct{}),
		fetchers: fetchers,
	}
}

// Reset invalidates the cache. Used by tests and at the start of each file
// import so a stale vocabulary does not outlive its task.
func (v *Validator) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache = make(map[string]map[string]struct{})
}

func (v *Validator) fetch(def Definition, key string) (map[string]struct{}, error) {
	fetcher, ok := v.fetchers[def.Source]
	if !ok {
		return nil, &Error{
			VocabType: def.Type,
			Reason:    fmt.Sprintf("unknown source %q", def.Source),
		}
	}
	keys, err := fetcher.FetchKeys(def.Type, key)
	if err != nil {
		return nil, fmt.Errorf("fetching vocabulary %s: %w", def.Type, err)
	}
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[k] = struct{}{}
	}
	return set, nil
}

func (v *Validator) hasKey(def Definition, key string) (bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	cached, ok := v.cache[def.Type]
	if !ok {
		cached = make(map[string]struct{})
		v.cache[def.Type] = cached
	}
	if _, ok := cached[key]; ok {
		return true, nil
	}

	keys, err := v.fetch(def, key)
	if err != nil {
		return false, err
	}
	if _, ok := keys[key]; ok {
		for k := range keys {
			cached[k] = struct{}{}
		}
		return true, nil
	}
	return false, nil
}

func (v *Validator) validateLeaf(def Definition, value any) error {
	key, ok := value.(string)
	if !ok {
		key = fmt.Sprintf("%v", value)
	}
	found, err := v.hasKey(def, key)
	if err != nil {
		return err
	}
	if !found {
		return &Error{Value: key, VocabType: def.Type}
	}
	return nil
}

// Validate walks record against definitions and fails on the first value
// missing from its declared vocabulary.
func (v *Validator) Validate(definitions Definitions, record map[string]any) error {
	for field, value := range record {
		def, declared := definitions[field]
		if !declared {
			continue
		}

		switch typed := value.(type) {
		case map[string]any:
			if def.Nested == nil {
				return v.validateLeaf(def, value)
			}
			if err := v.Validate(def.Nested, typed); err != nil {
				return err
			}
		case []any:
			for _, el := range typed {
				if nested, ok := el.(map[string]any); ok && def.Nested != nil {
					if err := v.Validate(def.Nested, nested); err != nil {
						return err
					}
					continue
				}
				if err := v.validateLeaf(def, el); err != nil {
					return err
				}
			}
		default:
			if value == nil {
				continue
			}
			if err := v.validateLeaf(def, value); err != nil {
				return err
			}
		}
	}
	return nil
}
