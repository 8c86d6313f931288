package marc

import (
	"strings"

	"github.com/openils/importer/internal/entities"
)

var eblIgnore = []string{
	"005", "006", "007", "008",
	"020__q",
	"040__a", "040__e", "040__c", "040__d",
	"264_4c",
	"336__a", "336__b", "336__2",
	"337__a", "337__b", "337__2",
	"338__a", "338__b", "338__2",
	"500__a", "5058_a", "588__a", "590__a",
	"655_4a",
	"77608i", "77608a", "77608t", "77608d", "77608z",
	"7972_a",
	"830_0a",
	"24514a",
	"85640z",
}

// seriesTitle cleans a 490 series statement: trailing punctuation dropped,
// a trailing "ser." spelled out, runs of whitespace collapsed.
func seriesTitle(raw string) string {
	title := strings.TrimRight(strings.TrimSpace(raw), ",;")
	for _, word := range []string{"ser.", "Ser."} {
		if strings.HasSuffix(title, word) {
			title = title[:len(title)-len(word)] + "series"
			break
		}
	}
	return collapse(title)
}

func eblModel() *Model {
	m := NewModel(ProviderEBL, entities.DocumentTypeBook, eblIgnore)

	m.Over("^001", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.ProviderRecID = f.Control
		doc.AlternativeIdentifiers = appendIdentifier(doc.AlternativeIdentifiers, entities.Identifier{
			Scheme: "EBL",
			Value:  strings.ReplaceAll(f.Control, "EBC", ""),
		})
		return nil
	})

	m.Over("^003", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.AgencyCode = f.Control
		return nil
	})

	m.Over("(^100)|(^700)", func(doc *entities.DocumentMetadata, key string, f Field) error {
		name, err := req(f, "a")
		if err != nil {
			return err
		}
		role, err := contributorRole("e", f.Subfields.First("e"))
		if err != nil {
			return err
		}
		doc.Authors = append(doc.Authors, entities.Author{
			FullName: strings.TrimRight(name, "."),
			Roles:    []string{role},
			Type:     "PERSON",
		})
		return nil
	})

	m.Over("^245", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if doc.Title != "" {
			return &entities.UnexpectedValue{
				FieldError: entities.FieldError{Reason: "ambiguous title"},
			}
		}
		if sub := f.Subfields.First("b"); sub != "" {
			doc.AlternativeTitles = append(doc.AlternativeTitles, entities.AlternativeTitle{
				Value: strings.TrimRight(strings.TrimSpace(sub), "."),
				Type:  entities.AlternativeTitleSubtitle,
			})
		}
		title, err := req(f, "a")
		if err != nil {
			return err
		}
		doc.Title = collapse(strings.TrimRight(strings.TrimSpace(title), ".:"))
		return nil
	})

	m.Over("^85640", func(doc *entities.DocumentMetadata, key string, f Field) error {
		for _, u := range f.Subfields.All("u") {
			doc.EItem.URLs = append(doc.EItem.URLs, entities.URL{
				Value:       u,
				Description: "e-book",
			})
		}
		return nil
	})

	m.Over("^020__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if v := f.Subfields.First("a"); v != "" {
			doc.Identifiers = appendIdentifier(doc.Identifiers, entities.Identifier{
				Scheme:   entities.SchemeISBN,
				Value:    v,
				Material: "DIGITAL",
			})
		}
		if v := f.Subfields.First("z"); v != "" {
			doc.Identifiers = appendIdentifier(doc.Identifiers, entities.Identifier{
				Scheme:   entities.SchemeISBN,
				Value:    v,
				Material: "PRINT_VERSION",
			})
		}
		return nil
	})

	m.Over("^035__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		v := f.Subfields.First("a")
		if !strings.Contains(v, "(Au-PeEL)") {
			return nil
		}
		v = strings.ReplaceAll(strings.ReplaceAll(v, "(Au-PeEL)", ""), "EBL", "")
		doc.AlternativeIdentifiers = appendIdentifier(doc.AlternativeIdentifiers, entities.Identifier{
			Scheme: "EBL",
			Value:  v,
		})
		return nil
	})

	m.Over("^040__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		lang, err := lookupLanguage("b", f.Subfields.First("b"))
		if err != nil {
			return err
		}
		for _, existing := range doc.Languages {
			if existing == lang {
				return errSkipField
			}
		}
		doc.Languages = append(doc.Languages, lang)
		return nil
	})

	m.Over("^050_4", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Subjects = appendSubject(doc.Subjects, entities.Subject{
			Scheme: "LOC",
			Value:  strings.TrimSpace(f.Subfields.First("a")),
		})
		return nil
	})

	m.Over("^0820_", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Subjects = appendSubject(doc.Subjects, entities.Subject{
			Scheme: "DEWEY",
			Value:  strings.TrimSpace(f.Subfields.First("a")),
		})
		return nil
	})

	m.Over("^250__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		edition := f.Subfields.First("a")
		edition = strings.ReplaceAll(edition, "edition", "")
		edition = strings.ReplaceAll(edition, "ed.", "")
		doc.Edition = strings.TrimSpace(edition)
		return nil
	})

	m.Over("^264_1", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if doc.PublicationYear != "" {
			return &entities.UnexpectedValue{
				FieldError: entities.FieldError{Subfield: "c", Reason: "doubled publication year"},
			}
		}
		doc.PublicationYear = strings.TrimRight(strings.TrimSpace(f.Subfields.First("c")), ".")
		doc.Imprint = &entities.Imprint{
			Place:     strings.TrimSpace(strings.TrimRight(f.Subfields.First("a"), " :")),
			Publisher: strings.TrimSpace(strings.TrimRight(f.Subfields.First("b"), " ,")),
		}
		return nil
	})

	m.Over("^300__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if pages := pageCount(f.Subfields.First("a")); pages != "" {
			doc.PhysicalDescription = pages + " pages"
		}
		return nil
	})

	m.Over("^490", func(doc *entities.DocumentMetadata, key string, f Field) error {
		title, err := req(f, "a")
		if err != nil {
			return err
		}
		descriptor := entities.SeriesDescriptor{Title: seriesTitle(title)}
		if issn := f.Subfields.First("x"); issn != "" {
			descriptor.Identifiers = []entities.Identifier{{
				Scheme: entities.SchemeISSN,
				Value:  strings.TrimRight(issn, " ;"),
			}}
		}
		descriptor.Volume = firstNumber(f.Subfields.First("v"))
		doc.Serial = append(doc.Serial, descriptor)
		return nil
	})

	m.Over("^5050_", func(doc *entities.DocumentMetadata, key string, f Field) error {
		for _, chapter := range strings.Split(f.Subfields.First("a"), "--") {
			if chapter = strings.TrimSpace(chapter); chapter != "" {
				doc.TableOfContent = append(doc.TableOfContent, chapter)
			}
		}
		return nil
	})

	m.Over("^520__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Abstract = strings.TrimSpace(f.Subfields.First("a"))
		return nil
	})

	m.Over("^650_0", func(doc *entities.DocumentMetadata, key string, f Field) error {
		keyword, err := req(f, "a")
		if err != nil {
			return err
		}
		keyword = strings.TrimRight(keyword, ":")
		for _, existing := range doc.Keywords {
			if existing == keyword {
				return errSkipField
			}
		}
		doc.Keywords = append(doc.Keywords, keyword)
		return nil
	})

	return m
}
