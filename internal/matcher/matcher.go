// Package matcher finds catalog documents that correspond to an incoming
// import record. The exact cascade queries the search rows by ISBN, DOI and
// normalized title+authors; validation then splits the candidates into at
// most one trusted match and a list of partial matches that need a librarian
// decision. A fuzzy title pass catches near-duplicates the cascade missed.
package matcher

import (
	"strings"

	"github.com/openils/importer/internal/database/documents"
	"github.com/openils/importer/internal/database/relations"
	"github.com/openils/importer/internal/database/series"
	"github.com/openils/importer/internal/entities"
)

// Jaro-Winkler floors for the fuzzy pass. The title band is tight because a
// title hit alone proposes a merge; authors only have to agree roughly.
const (
	fuzzyTitleThreshold   = 0.92
	fuzzyAuthorsThreshold = 0.85
)

type Matcher struct {
	documents *documents.Repository
	relations *relations.Repository
	series    *series.Repository
}

func NewMatcher(docs *documents.Repository, rels *relations.Repository, ser *series.Repository) *Matcher {
	return &Matcher{documents: docs, relations: rels, series: ser}
}

// SearchForMatchingDocuments runs the exact cascade: every ISBN, then every
// DOI, then the normalized title with concatenated authors (restricted by
// the subtitle when the record has one). Hits are unioned in first-seen
// order so the strongest evidence stays in front.
func (m *Matcher) SearchForMatchingDocuments(doc *entities.DocumentMetadata) ([]string, error) {
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

	for _, isbn := range doc.IdentifierValues(entities.SchemeISBN) {
		pids, err := m.documents.SearchByIdentifier(entities.SchemeISBN, isbn)
		if err != nil {
			return nil, err
		}
		add(pids)
	}
	for _, doi := range doc.IdentifierValues(entities.SchemeDOI) {
		pids, err := m.documents.SearchByIdentifier(entities.SchemeDOI, doi)
		if err != nil {
			return nil, err
		}
		add(pids)
	}
	if doc.Title != "" {
		pids, err := m.documents.SearchByTitleAuthors(doc.Title, doc.AuthorNames(), doc.Subtitle())
		if err != nil {
			return nil, err
		}
		add(pids)
	}
	return found, nil
}

// ValidateFoundMatches loads every candidate and decides how much to trust
// it. A shared ISBN is conclusive. Without one the candidate is demoted to a
// partial match when any stored field contradicts the incoming record:
// different normalized title, conflicting editions, conflicting publication
// years, disjoint alternative identifiers from the same provider, or a
// different volume within the same series. The first surviving candidate is
// the match; any further ones are demoted as well, since two exact matches
// mean the catalog itself holds a duplicate.
func (m *Matcher) ValidateFoundMatches(doc *entities.DocumentMetadata, provider string, candidates []string) (string, []string, error) {
	var exact []string
	var partial []string

	for _, pid := range candidates {
		candidate, err := m.documents.GetByPID(pid)
		if err != nil {
			return "", nil, err
		}

		if sharedISBN(doc, &candidate.Metadata) {
			exact = append(exact, pid)
			continue
		}

		conflict, err := m.fieldConflict(doc, candidate, provider)
		if err != nil {
			return "", nil, err
		}
		if conflict {
			partial = append(partial, pid)
		} else {
			exact = append(exact, pid)
		}
	}

	if len(exact) == 0 {
		return "", partial, nil
	}
	return exact[0], append(partial, exact[1:]...), nil
}

func (m *Matcher) fieldConflict(doc *entities.DocumentMetadata, candidate *entities.Document, provider string) (bool, error) {
	stored := &candidate.Metadata

	if documents.NormalizeTitle(doc.Title) != documents.NormalizeTitle(stored.Title) {
		return true, nil
	}
	if doc.Edition != "" && stored.Edition != "" && doc.Edition != stored.Edition {
		return true, nil
	}
	if doc.PublicationYear != stored.PublicationYear {
		return true, nil
	}
	if disjointProviderIdentifiers(doc, stored, provider) {
		return true, nil
	}
	return m.serialVolumeConflict(doc, candidate.PID)
}

// sharedISBN reports whether the two records carry at least one ISBN in
// common.
func sharedISBN(a, b *entities.DocumentMetadata) bool {
	theirs := make(map[string]bool)
	for _, isbn := range b.IdentifierValues(entities.SchemeISBN) {
		theirs[isbn] = true
	}
	for _, isbn := range a.IdentifierValues(entities.SchemeISBN) {
		if theirs[isbn] {
			return true
		}
	}
	return false
}

// disjointProviderIdentifiers reports whether both records carry alternative
// identifiers minted by the current provider and none of them overlap. Two
// records the same supplier numbered differently are different records no
// matter how similar they look.
func disjointProviderIdentifiers(doc, stored *entities.DocumentMetadata, provider string) bool {
	scheme := strings.ToUpper(provider)
	ours := altIdentifiers(doc, scheme)
	theirs := altIdentifiers(stored, scheme)
	if len(ours) == 0 || len(theirs) == 0 {
		return false
	}
	for value := range ours {
		if theirs[value] {
			return false
		}
	}
	return true
}

func altIdentifiers(doc *entities.DocumentMetadata, scheme string) map[string]bool {
	values := make(map[string]bool)
	for _, id := range doc.AlternativeIdentifiers {
		if id.Scheme == scheme {
			values[id.Value] = true
		}
	}
	return values
}

// serialVolumeConflict reports whether the candidate already sits in one of
// the incoming record's series under a different volume number.
func (m *Matcher) serialVolumeConflict(doc *entities.DocumentMetadata, candidatePID string) (bool, error) {
	if len(doc.Serial) == 0 {
		return false, nil
	}

	rels, err := m.relations.ByChild(candidatePID)
	if err != nil {
		return false, err
	}
	for _, rel := range rels {
		if rel.Type != entities.RelationSerial || rel.Volume == "" {
			continue
		}
		parent, err := m.series.GetByPID(rel.ParentPID)
		if err != nil {
			return false, err
		}
		parentTitle := documents.NormalizeTitle(parent.Metadata.Title)
		for _, descriptor := range doc.Serial {
			if descriptor.Volume == "" {
				continue
			}
			if documents.NormalizeTitle(descriptor.Title) == parentTitle && descriptor.Volume != rel.Volume {
				return true, nil
			}
		}
	}
	return false, nil
}

// FuzzyMatchDocuments scores every indexed title row against the incoming
// record and returns the pids that clear both the title and the authors
// band, best first. Records bound to a series are skipped entirely; their
// issues legitimately share near-identical titles. A storage failure comes
// back as SimilarityMatchUnavailable so callers can degrade to the exact
// cascade instead of failing the record.
func (m *Matcher) FuzzyMatchDocuments(doc *entities.DocumentMetadata) ([]string, error) {
	if len(doc.Serial) > 0 || doc.Title == "" {
		return nil, nil
	}

	entries, err := m.documents.TitleEntries()
	if err != nil {
		return nil, &entities.SimilarityMatchUnavailable{Cause: err}
	}

	title := documents.NormalizeTitle(doc.Title)
	authors := documents.AuthorsText(doc.AuthorNames())

	type scored struct {
		pid   string
		score float64
	}
	var hits []scored
	for _, entry := range entries {
		titleScore := jaroWinkler(title, entry.NormalizedTitle)
		if titleScore < fuzzyTitleThreshold {
			continue
		}
		if authors != "" && entry.AuthorsText != "" &&
			jaroWinkler(authors, entry.AuthorsText) < fuzzyAuthorsThreshold {
			continue
		}
		hits = append(hits, scored{pid: entry.DocumentPID, score: titleScore})
	}

	// Stable on the underlying index order, so equal scores keep the
	// older document first.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].score > hits[j-1].score; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	pids := make([]string, 0, len(hits))
	for _, hit := range hits {
		pids = append(pids, hit.pid)
	}
	return pids, nil
}
