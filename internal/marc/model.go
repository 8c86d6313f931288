package marc

import (
	"errors"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/openils/importer/internal/entities"
)

// RuleFunc translates one source field into the document under construction.
// Rules run in document order and may read fields written by earlier rules,
// the way the title rule appends the subtitle alternative title.
type RuleFunc func(doc *entities.DocumentMetadata, key string, f Field) error

type rule struct {
	pattern *regexp.Regexp
	fn      RuleFunc
}

// Model is a per-provider rule registry mapping tag patterns to rule funcs.
// Keys without a matching rule must be listed in the ignore set, either as a
// bare tag ("005") or tag plus subfield code ("020__q"); anything else left
// unconsumed makes the conversion lossy.
//
// Rule closures may keep per-record state, so a Model handles exactly one
// record. ModelFor returns a fresh one.
type Model struct {
	Provider     string
	DocumentType entities.DocumentType

	rules  []rule
	ignore map[string]struct{}
}

// NewModel builds an empty registry for a provider with its default
// document type and ignore set.
func NewModel(provider string, docType entities.DocumentType, ignore []string) *Model {
	m := &Model{
		Provider:     provider,
		DocumentType: docType,
		ignore:       make(map[string]struct{}, len(ignore)),
	}
	for _, key := range ignore {
		m.ignore[key] = struct{}{}
	}
	return m
}

var (
	patternMu    sync.Mutex
	patternCache = map[string]*regexp.Regexp{}
)

func compilePattern(pattern string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	re, ok := patternCache[pattern]
	if !ok {
		re = regexp.MustCompile(pattern)
		patternCache[pattern] = re
	}
	return re
}

// Over registers a rule for every key matching the pattern. Patterns are
// anchored the way the registry keys are written ("^24510", "(^100)|(^700)").
func (m *Model) Over(pattern string, fn RuleFunc) {
	m.rules = append(m.rules, rule{pattern: compilePattern(pattern), fn: fn})
}

func (m *Model) match(key string) RuleFunc {
	for _, r := range m.rules {
		if r.pattern.MatchString(key) {
			return r.fn
		}
	}
	return nil
}

func (m *Model) ignored(f Field) bool {
	if _, ok := m.ignore[f.Key]; ok {
		return true
	}
	if len(f.Subfields) == 0 {
		return false
	}
	for code := range f.Subfields {
		if _, ok := m.ignore[f.Key+code]; !ok {
			return false
		}
	}
	return true
}

// mediaType derives the eitem type and document type from the leader.
func mediaType(leader string) (entities.EItemType, entities.DocumentType, error) {
	if len(leader) < 8 {
		return "", "", &entities.UnrecognisedImportMediaType{Leader: leader}
	}
	switch leader[6:8] {
	case "am":
		return entities.EItemTypeEBook, "", nil
	case "im", "jm":
		return entities.EItemTypeAudiobook, "", nil
	case "gm":
		return entities.EItemTypeVideo, entities.DocumentTypeMultimedia, nil
	}
	return "", "", &entities.UnrecognisedImportMediaType{Leader: leader}
}

func annotate(err error, key string) bool {
	var fieldErr *entities.FieldError
	switch e := err.(type) {
	case *entities.UnexpectedValue:
		fieldErr = &e.FieldError
	case *entities.MissingRequiredField:
		fieldErr = &e.FieldError
	case *entities.ManualImportRequired:
		fieldErr = &e.FieldError
	default:
		return false
	}
	if fieldErr.Tag == "" {
		fieldErr.Tag = key
	}
	return true
}

// Transform runs the registry over a parsed record and returns the document
// plus whether the record is marked deletable (leader status byte "d").
//
// Rule errors carry the offending tag. With strict off, a failing rule is
// logged and its field skipped instead of rejecting the record; errors other
// than rule errors always reject. Keys consumed by no rule and absent from
// the ignore set reject the record as a lossy conversion.
func (m *Model) Transform(rec Record, strict bool) (*entities.DocumentMetadata, bool, error) {
	eitemType, docType, err := mediaType(rec.Leader)
	if err != nil {
		return nil, false, err
	}
	deletable := len(rec.Leader) > 5 && rec.Leader[5] == 'd'

	doc := &entities.DocumentMetadata{
		DocumentType: m.DocumentType,
		EItem:        &entities.EItemCandidate{Type: eitemType},
	}
	if docType != "" {
		doc.DocumentType = docType
	}

	var missing []string
	for _, f := range rec.Fields {
		fn := m.match(f.Key)
		if fn == nil {
			if !m.ignored(f) {
				missing = append(missing, f.Key)
			}
			continue
		}
		if err := fn(doc, f.Key, f); err != nil {
			if errors.Is(err, errSkipField) {
				continue
			}
			if !annotate(err, f.Key) || strict {
				return nil, false, err
			}
			log.Printf("importer: %s record %s: skipping field: %v",
				m.Provider, doc.ProviderRecID, err)
		}
	}

	if len(missing) > 0 {
		return nil, false, &entities.LossyConversion{Missing: missing}
	}
	return doc, deletable, nil
}

// errSkipField drops the current field without failing the record, for
// rules that decide a value is a duplicate.
var errSkipField = errors.New("skip field")

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
