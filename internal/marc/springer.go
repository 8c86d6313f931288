package marc

import (
	"strings"

	"github.com/openils/importer/internal/entities"
)

var springerIgnore = []string{
	"005", "006", "007", "008",
	"015__2", "015__a", "0167_2", "0167_a",
	"020__q", "020__z",
	"035__a", "040__a", "040__b", "040__c", "040__d", "040__e",
	"0411_a", "0411_h",
	"072_7a", "072_72",
	"1001_4", "7001_4",
	"24510c", "24510h",
	"250__a",
	"264_4c",
	"300__a", "300__b",
	"336__a", "336__b", "336__2",
	"337__a", "337__b", "337__2",
	"338__a", "338__b", "338__2",
	"347__a", "347__b", "347__2",
	"4901_a", "4901_v", "4901_x",
	"500__a", "5050_a", "506__a", "520__a",
	"650_0a", "65014a", "65024a",
	"655_4a",
	"77608i", "77608t", "77608z", "77608w",
	"830_0a", "830_0v", "830_0x", "830_0w",
	"912__a", "950__a",
}

var springerDocumentTypes = map[string]entities.DocumentType{
	"BOOK":        entities.DocumentTypeBook,
	"PROCEEDINGS": entities.DocumentTypeProceedings,
	"STANDARD":    entities.DocumentTypeStandard,
	"MULTIMEDIA":  entities.DocumentTypeMultimedia,
}

func springerModel() *Model {
	m := NewModel(ProviderSpringer, entities.DocumentTypeBook, springerIgnore)

	m.Over("^001", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.ProviderRecID = f.Control
		return nil
	})

	m.Over("^003", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.AgencyCode = f.Control
		return nil
	})

	m.Over("^24510", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if doc.Title != "" {
			return &entities.UnexpectedValue{
				FieldError: entities.FieldError{Reason: "ambiguous title"},
			}
		}
		if sub := f.Subfields.First("b"); sub != "" {
			doc.AlternativeTitles = append(doc.AlternativeTitles, entities.AlternativeTitle{
				Value: strings.TrimSpace(sub),
				Type:  entities.AlternativeTitleSubtitle,
			})
		}
		title, err := req(f, "a")
		if err != nil {
			return err
		}
		doc.Title = strings.TrimSpace(title)
		return nil
	})

	m.Over("(^1001_)|(^7001_)", func(doc *entities.DocumentMetadata, key string, f Field) error {
		name, err := req(f, "a")
		if err != nil {
			return err
		}
		role, err := contributorRole("e", f.Subfields.First("e"))
		if err != nil {
			return err
		}
		author := entities.Author{FullName: name, Roles: []string{role}}
		if orcid := f.Subfields.First("0"); orcid != "" {
			author.Identifiers = []entities.Identifier{{Scheme: "ORCID", Value: orcid}}
		}
		doc.Authors = append(doc.Authors, author)
		return nil
	})

	m.Over("^980__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		raw := f.Subfields.First("a")
		docType, ok := springerDocumentTypes[raw]
		if !ok {
			return &entities.ManualImportRequired{
				FieldError: entities.FieldError{
					Subfield: "a",
					Reason:   "document type " + raw + " is not allowed",
				},
			}
		}
		doc.DocumentType = docType
		return nil
	})

	m.Over("^264_1", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if doc.PublicationYear != "" {
			return &entities.UnexpectedValue{
				FieldError: entities.FieldError{Subfield: "c", Reason: "doubled publication year"},
			}
		}
		doc.PublicationYear = strings.TrimSpace(f.Subfields.First("c"))
		doc.Imprint = &entities.Imprint{
			Place:     strings.TrimSpace(f.Subfields.First("a")),
			Publisher: strings.Join(f.Subfields.All("b"), ", "),
			Date:      doc.PublicationYear,
		}
		return nil
	})

	m.Over("^85640", func(doc *entities.DocumentMetadata, key string, f Field) error {
		for _, u := range f.Subfields.All("u") {
			doc.EItem.URLs = append(doc.EItem.URLs, entities.URL{
				Value:       u,
				Description: "E-book by Springer",
			})
		}
		return nil
	})

	m.Over("^595__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.EItem.InternalNotes = strings.TrimSpace(f.Subfields.First("a"))
		return nil
	})

	m.Over("^020__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		value, err := req(f, "a")
		if err != nil {
			return err
		}
		doc.Identifiers = appendIdentifier(doc.Identifiers, entities.Identifier{
			Scheme:   entities.SchemeISBN,
			Value:    value,
			Material: f.Subfields.First("u"),
		})
		return nil
	})

	m.Over("^024(7_|__)", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if !strings.EqualFold(f.Subfields.First("2"), "doi") {
			return &entities.ManualImportRequired{
				FieldError: entities.FieldError{Subfield: "2", Reason: "unsupported identifier source"},
			}
		}
		value, err := req(f, "a")
		if err != nil {
			return err
		}
		doc.Identifiers = appendIdentifier(doc.Identifiers, entities.Identifier{
			Scheme:   entities.SchemeDOI,
			Value:    value,
			Material: f.Subfields.First("u"),
		})
		return nil
	})

	m.Over("^0504_", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Subjects = appendSubject(doc.Subjects, entities.Subject{
			Scheme: "LOC",
			Value:  strings.TrimSpace(f.Subfields.First("a")),
		})
		return nil
	})

	m.Over("^0824_", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Subjects = appendSubject(doc.Subjects, entities.Subject{
			Scheme: "DEWEY",
			Value:  strings.TrimSpace(f.Subfields.First("a")),
		})
		return nil
	})

	return m
}
