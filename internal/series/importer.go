// Package series attaches documents to serial records: every `_serial`
// descriptor of an incoming document either finds its series by ISSN, ISBN
// or title and joins it, or creates a fresh one. Multi-volume supplier
// records are split into a multipart parent plus one document per volume.
package series

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/openils/importer/internal/database/pids"
	"github.com/openils/importer/internal/database/relations"
	seriesdb "github.com/openils/importer/internal/database/series"
	"github.com/openils/importer/internal/entities"
	"github.com/openils/importer/internal/vocabulary"
)

// Importer actions reported per descriptor.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionError  = "error"
)

// Suffixes cut off series titles before matching and before create. Kept in
// both capitalizations so the create path can trim without casefolding the
// stored title.
var ignoreSuffixes = []string{" series", " ser", " Series", " Ser"}

type Importer struct {
	series    *seriesdb.Repository
	relations *relations.Repository
	pids      *pids.Repository
	vocab     *vocabulary.Validator
}

func NewImporter(ser *seriesdb.Repository, rels *relations.Repository, pidRepo *pids.Repository, vocab *vocabulary.Validator) *Importer {
	return &Importer{series: ser, relations: rels, pids: pidRepo, vocab: vocab}
}

// NormalizeTitle casefolds, collapses whitespace and drops a trailing
// "series"/"ser" so known supplier inconsistencies still hit the same
// record.
func NormalizeTitle(title string) string {
	t := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	for _, suffix := range ignoreSuffixes {
		if strings.HasSuffix(t, suffix) {
			t = strings.TrimSuffix(t, suffix)
			break
		}
	}
	return strings.TrimSpace(t)
}

func trimTitleSuffix(title string) string {
	for _, suffix := range ignoreSuffixes {
		if strings.HasSuffix(title, suffix) {
			return strings.TrimSuffix(title, suffix)
		}
	}
	return title
}

// ImportSeries processes every `_serial` descriptor of the document: attach
// to a single validated match, create when nothing matches, fail the record
// when several series remain plausible.
func (i *Importer) ImportSeries(doc *entities.Document, descriptors []entities.SeriesDescriptor, provider string) ([]entities.SeriesReport, error) {
	return i.run(doc, descriptors, provider, false)
}

// PreviewSeries runs the same decisions without writing anything.
func (i *Importer) PreviewSeries(descriptors []entities.SeriesDescriptor, provider string) ([]entities.SeriesReport, error) {
	return i.run(nil, descriptors, provider, true)
}

func (i *Importer) run(doc *entities.Document, descriptors []entities.SeriesDescriptor, provider string, preview bool) ([]entities.SeriesReport, error) {
	var reports []entities.SeriesReport

	for _, descriptor := range descriptors {
		candidates, err := i.searchForMatchingSeries(descriptor)
		if err != nil {
			return reports, err
		}
		validated, err := i.validateMatches(descriptor, candidates)
		if err != nil {
			return reports, err
		}

		switch len(validated) {
		case 0:
			report, err := i.createAndAttach(doc, descriptor, provider, preview)
			if err != nil {
				return reports, err
			}
			reports = append(reports, *report)

		case 1:
			report, err := i.updateAndAttach(doc, descriptor, validated[0], preview)
			if err != nil {
				return reports, err
			}
			reports = append(reports, *report)

		default:
			reports = append(reports, entities.SeriesReport{
				Action:     ActionError,
				Duplicates: validated,
				Error:      "multiple series found",
			})
			return reports, &entities.SeriesImportError{Message: "multiple series found"}
		}
	}
	return reports, nil
}

// searchForMatchingSeries unions ISSN, ISBN and title hits in first-seen
// order. The title lookup retries with the suffix-trimmed form when the
// exact normalized title finds nothing.
func (i *Importer) searchForMatchingSeries(descriptor entities.SeriesDescriptor) ([]string, error) {
	var found []string
	seen := make(map[string]bool)

	add := func(pids []string) {
		for _, pid := range pids {
			if !seen[pid] {
				seen[pid] = true
				found = append(found, pid)
			}
		}
	}

	for _, id := range descriptor.Identifiers {
		if id.Scheme != entities.SchemeISSN {
			continue
		}
		pids, err := i.series.SearchByIdentifier(entities.SchemeISSN, id.Value)
		if err != nil {
			return nil, err
		}
		add(pids)
	}
	for _, id := range descriptor.Identifiers {
		if id.Scheme != entities.SchemeISBN {
			continue
		}
		pids, err := i.series.SearchByIdentifier(entities.SchemeISBN, id.Value)
		if err != nil {
			return nil, err
		}
		add(pids)
	}

	if descriptor.Title != "" {
		pids, err := i.series.SearchByTitle(descriptor.Title)
		if err != nil {
			return nil, err
		}
		if len(pids) == 0 {
			pids, err = i.series.SearchByTitle(NormalizeTitle(descriptor.Title))
			if err != nil {
				return nil, err
			}
		}
		add(pids)
	}
	return found, nil
}

// validateMatches drops candidates that are not serials, then keeps exact
// (or suffix-normalized) title matches when any exist; otherwise a candidate
// survives only if its ISSNs, publisher and publication year are consistent
// with the descriptor wherever both sides carry a value.
func (i *Importer) validateMatches(descriptor entities.SeriesDescriptor, candidates []string) ([]string, error) {
	type loaded struct {
		pid  string
		meta *entities.SeriesMetadata
	}
	var serials []loaded
	for _, pid := range candidates {
		s, err := i.series.GetByPID(pid)
		if err != nil {
			return nil, err
		}
		if s.Metadata.ModeOfIssuance != entities.ModeOfIssuanceSerial {
			continue
		}
		if s.Metadata.SeriesType != "" && s.Metadata.SeriesType != "SERIAL" {
			continue
		}
		serials = append(serials, loaded{pid: pid, meta: &s.Metadata})
	}

	wantTitle := NormalizeTitle(descriptor.Title)
	var byTitle []string
	for _, s := range serials {
		if NormalizeTitle(s.meta.Title) == wantTitle {
			byTitle = append(byTitle, s.pid)
		}
	}
	if len(byTitle) > 0 {
		return byTitle, nil
	}

	wantISSNs := identifierSet(descriptor.Identifiers, entities.SchemeISSN)
	var validated []string
	for _, s := range serials {
		haveISSNs := identifierSet(s.meta.Identifiers, entities.SchemeISSN)
		if len(wantISSNs) > 0 && len(haveISSNs) > 0 && !intersects(wantISSNs, haveISSNs) {
			continue
		}
		if descriptor.Publisher != "" && s.meta.Publisher != "" &&
			descriptor.Publisher != s.meta.Publisher {
			continue
		}
		if descriptor.PublicationYear != "" && s.meta.PublicationYear != "" &&
			descriptor.PublicationYear != s.meta.PublicationYear {
			continue
		}
		validated = append(validated, s.pid)
	}
	return validated, nil
}

func (i *Importer) createAndAttach(doc *entities.Document, descriptor entities.SeriesDescriptor, provider string, preview bool) (*entities.SeriesReport, error) {
	meta := i.buildMetadata(descriptor, provider)
	if err := i.validateVocabularies(&meta); err != nil {
		return &entities.SeriesReport{Action: ActionError, Error: err.Error()}, err
	}
	if preview {
		return &entities.SeriesReport{Action: ActionCreate, Series: &meta}, nil
	}

	objectUUID := uuid.NewString()
	value, err := i.pids.Mint(entities.PIDTypeSeries, objectUUID)
	if err != nil {
		return nil, err
	}
	pid := entities.PIDTypeSeries + "-" + value
	meta.PID = pid

	record := &entities.Series{PID: pid, UUID: objectUUID, Metadata: meta}
	if err := i.series.Create(record); err != nil {
		return nil, err
	}
	if err := i.series.Index(record); err != nil {
		return nil, err
	}
	if err := i.attach(pid, doc.PID, descriptor.Volume); err != nil {
		return nil, err
	}
	return &entities.SeriesReport{Action: ActionCreate, PID: pid, Series: &meta}, nil
}

func (i *Importer) updateAndAttach(doc *entities.Document, descriptor entities.SeriesDescriptor, pid string, preview bool) (*entities.SeriesReport, error) {
	matched, err := i.series.GetByPID(pid)
	if err != nil {
		return nil, err
	}
	matched.Metadata.Identifiers = unionIdentifiers(matched.Metadata.Identifiers, descriptor.Identifiers)

	if preview {
		return &entities.SeriesReport{Action: ActionUpdate, PID: pid, Series: &matched.Metadata}, nil
	}

	if err := i.series.Save(matched); err != nil {
		return nil, err
	}
	if err := i.series.Index(matched); err != nil {
		return nil, err
	}
	if err := i.attach(pid, doc.PID, descriptor.Volume); err != nil {
		return nil, err
	}
	return &entities.SeriesReport{Action: ActionUpdate, PID: pid, Series: &matched.Metadata}, nil
}

// attach links the document under the series. A relation already in place
// for the same pair is left alone.
func (i *Importer) attach(seriesPID, documentPID, volume string) error {
	existing, err := i.relations.ByChild(documentPID)
	if err != nil {
		return err
	}
	for _, rel := range existing {
		if rel.ParentPID == seriesPID && rel.Type == entities.RelationSerial {
			return nil
		}
	}
	return i.relations.Add(seriesPID, documentPID, entities.RelationSerial, volume)
}

func (i *Importer) buildMetadata(descriptor entities.SeriesDescriptor, provider string) entities.SeriesMetadata {
	return entities.SeriesMetadata{
		Title:           trimTitleSuffix(descriptor.Title),
		ModeOfIssuance:  entities.ModeOfIssuanceSerial,
		SeriesType:      "SERIAL",
		Identifiers:     descriptor.Identifiers,
		Publisher:       descriptor.Publisher,
		PublicationYear: descriptor.PublicationYear,
		CreatedBy: &entities.CreatedBy{
			Type:  entities.CreatedByTypeImport,
			Value: strings.ToLower(provider),
		},
	}
}

func (i *Importer) validateVocabularies(meta *entities.SeriesMetadata) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	var record map[string]any
	if err := json.Unmarshal(raw, &record); err != nil {
		return err
	}
	return i.vocab.Validate(vocabulary.SeriesDefinitions, record)
}

func identifierSet(ids []entities.Identifier, scheme string) map[string]bool {
	values := make(map[string]bool)
	for _, id := range ids {
		if id.Scheme == scheme {
			values[id.Value] = true
		}
	}
	return values
}

func intersects(a, b map[string]bool) bool {
	for v := range a {
		if b[v] {
			return true
		}
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
