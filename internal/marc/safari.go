package marc

import (
	"strings"

	"github.com/openils/importer/internal/entities"
)

var safariIgnore = []string{
	"005", "006", "007", "008",
	"010__a", "010__z",
	"015__2", "015__a",
	"0167_2", "0167_a", "0167_z",
	"019__a",
	"0243_a", "0247_2", "0247_a", "024__a",
	"035__a",
	"037__a", "037__b",
	"040__a", "040__b", "040__c", "040__d", "040__e",
	"050_4b", "05000a", "05000b",
	"072_7a", "072_72",
	"08204a", "08204b", "0820_b",
	"1001_4", "7001_4",
	"24510c", "24510h",
	"246__a", "24630a",
	"264_2a", "264_2b", "264_2c", "264_4c",
	"300__b",
	"336__a", "336__b", "336__2",
	"337__a", "337__b", "337__2",
	"338__a", "338__b", "338__2",
	"347__a", "347__b", "347__2",
	"4901_a",
	"500__a", "5050_a", "5058_a",
	"506__a",
	"5880_a", "588__a",
	"590__a",
	"650_0a", "650_2a", "650_6a", "655_0a", "655_4a", "655_7a", "655_72",
	"7102_a", "730_0a",
	"77608i", "77608a", "77608t", "77608d", "77608z",
	"830_0a", "830_0v",
	"85642u", "85642z", "85642y",
}

// lastCut removes the last occurrence of cut in s, matching the supplier's
// habit of ending every statement with a full stop.
func lastCut(s, cut string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndex(s, cut); i >= 0 {
		return s[:i] + s[i+len(cut):]
	}
	return s
}

func safariModel() *Model {
	m := NewModel(ProviderSafari, entities.DocumentTypeBook, safariIgnore)

	m.Over("^001", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.ProviderRecID = f.Control
		doc.AlternativeIdentifiers = appendIdentifier(doc.AlternativeIdentifiers, entities.Identifier{
			Scheme: "SAFARI",
			Value:  f.Control,
		})
		return nil
	})

	m.Over("^003", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.AgencyCode = f.Control
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
		doc.Authors = append(doc.Authors, entities.Author{
			FullName: name,
			Roles:    []string{role},
		})
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
				Value: lastCut(sub, "."),
				Type:  entities.AlternativeTitleSubtitle,
			})
		}
		title, err := req(f, "a")
		if err != nil {
			return err
		}
		doc.Title = lastCut(title, ".")
		return nil
	})

	m.Over("^85640", func(doc *entities.DocumentMetadata, key string, f Field) error {
		for _, u := range f.Subfields.All("u") {
			doc.EItem.URLs = append(doc.EItem.URLs, entities.URL{
				Value:       u,
				Description: "E-book by Safari",
			})
		}
		return nil
	})

	m.Over("^020__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		value, err := req(f, "z")
		if err != nil {
			return err
		}
		doc.Identifiers = appendIdentifier(doc.Identifiers, entities.Identifier{
			Scheme: entities.SchemeISBN,
			Value:  value,
		})
		return nil
	})

	m.Over("^0410_", func(doc *entities.DocumentMetadata, key string, f Field) error {
		lang, err := lookupLanguage("a", f.Subfields.First("a"))
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

	m.Over("^250__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Edition = strings.TrimSpace(f.Subfields.First("a"))
		return nil
	})

	m.Over("^264_1", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if doc.PublicationYear != "" {
			return &entities.UnexpectedValue{
				FieldError: entities.FieldError{Subfield: "c", Reason: "doubled publication year"},
			}
		}
		doc.PublicationYear = lastCut(f.Subfields.First("c"), ".")
		doc.Imprint = &entities.Imprint{
			Publisher: lastCut(f.Subfields.First("b"), ","),
			Date:      doc.PublicationYear,
		}
		return nil
	})

	m.Over("^300__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if pages := pageCount(f.Subfields.First("a")); pages != "" {
			doc.PhysicalDescription = pages + " pages"
		}
		return nil
	})

	m.Over("^520__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Abstract = strings.TrimSpace(f.Subfields.First("a"))
		return nil
	})

	m.Over("^542__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Copyrights = append(doc.Copyrights, entities.Copyright{
			Year:      firstNumber(f.Subfields.First("g")),
			Statement: strings.TrimSpace(f.Subfields.First("f")),
		})
		return nil
	})

	return m
}
