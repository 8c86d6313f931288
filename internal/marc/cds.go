package marc

import (
	"strings"

	"github.com/openils/importer/internal/entities"
)

var cdsIgnore = []string{
	"005", "006", "007", "008",
	"035__9", "035__a",
	"037__a", "037__9",
	"088__a", "088__9",
	"300__b", "300__c",
	"340__a",
	"500__a", "5050_a", "505__a",
	"536__a", "536__c", "536__f",
	"540__a", "540__b", "540__3",
	"542__d", "542__g", "542__f",
	"595__a", "595__9",
	"599__a",
	"65017a", "65017b", "650172", "65027a", "650272",
	"690C_a", "697C_a",
	"700__m", "700__9", "100__m", "100__9",
	"710__5", "7102_a",
	"773__x", "773__p", "773__y", "773__n", "773__v", "773__c", "773__w",
	"852__c", "852__h",
	"8564_8", "8564_s", "8564_x",
	"916__s", "916__w",
	"925__a", "925__b",
	"927__a",
	"960__a",
	"962__b", "962__n", "962__k",
	"963__a",
	"964__a",
	"981__a",
}

var cdsDocumentTypes = map[string]entities.DocumentType{
	"BOOK":        entities.DocumentTypeBook,
	"21":          entities.DocumentTypeBook,
	"PROCEEDINGS": entities.DocumentTypeProceedings,
	"42":          entities.DocumentTypeProceedings,
	"43":          entities.DocumentTypeProceedings,
	"STANDARD":    entities.DocumentTypeStandard,
	"MULTIMEDIA":  entities.DocumentTypeMultimedia,
}

var cdsDOIMaterials = map[string]string{
	"":           "",
	"ebook":      "E-BOOK",
	"e-book":     "E-BOOK",
	"publication": "PUBLICATION",
	"erratum":    "ERRATUM",
	"addendum":   "ADDENDUM",
	"reprint":    "REPRINT",
	"data":       "DATA",
	"software":   "SOFTWARE",
}

// cdsModel maps the library's own legacy records. Unlike supplier feeds the
// source carries explicit document types, proxy-wrapped urls and multipart
// volume statements.
func cdsModel() *Model {
	m := NewModel(ProviderCDS, entities.DocumentTypeBook, cdsIgnore)

	m.Over("^001", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.ProviderRecID = f.Control
		doc.LegacyRecID = f.Control
		return nil
	})

	m.Over("^003", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.AgencyCode = f.Control
		return nil
	})

	m.Over("^245__", func(doc *entities.DocumentMetadata, key string, f Field) error {
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

	// 246 carries either alternative titles or, with $n/$p pairs, the
	// per-volume titles of a multipart monograph.
	m.Over("^246__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		hasN, hasP := f.Subfields.Has("n"), f.Subfields.Has("p")
		if hasN != hasP {
			return &entities.MissingRequiredField{
				FieldError: entities.FieldError{Subfield: "n or p"},
			}
		}
		if hasP {
			volume := firstNumber(f.Subfields.First("n"))
			if volume == "" {
				return &entities.UnexpectedValue{
					FieldError: entities.FieldError{Subfield: "n", Reason: "no volume number"},
				}
			}
			if doc.Migration == nil {
				doc.Migration = &entities.Migration{}
			}
			doc.Migration.MultivolumeRecord = true
			doc.Migration.Volumes = append(doc.Migration.Volumes, entities.VolumeDescriptor{
				Volume: volume,
				Title:  strings.TrimSpace(f.Subfields.First("p")),
			})
			return nil
		}
		if v := f.Subfields.First("a"); v != "" {
			doc.AlternativeTitles = append(doc.AlternativeTitles, entities.AlternativeTitle{
				Value: strings.TrimSpace(v),
				Type:  entities.AlternativeTitleAlternative,
			})
		}
		if v := f.Subfields.First("b"); v != "" {
			doc.AlternativeTitles = append(doc.AlternativeTitles, entities.AlternativeTitle{
				Value: strings.TrimSpace(v),
				Type:  entities.AlternativeTitleSubtitle,
			})
		}
		return nil
	})

	m.Over("^242__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if v := f.Subfields.First("a"); v != "" {
			doc.AlternativeTitles = append(doc.AlternativeTitles, entities.AlternativeTitle{
				Value: strings.TrimSpace(v),
				Type:  entities.AlternativeTitleTranslatedTitle,
			})
		}
		if v := f.Subfields.First("b"); v != "" {
			doc.AlternativeTitles = append(doc.AlternativeTitles, entities.AlternativeTitle{
				Value: strings.TrimSpace(v),
				Type:  entities.AlternativeTitleTranslatedSubtitle,
			})
		}
		return nil
	})

	m.Over("(^100__)|(^700__)", func(doc *entities.DocumentMetadata, key string, f Field) error {
		name, err := req(f, "a")
		if err != nil {
			return err
		}
		role, err := contributorRole("e", f.Subfields.First("e"))
		if err != nil {
			return err
		}
		author := entities.Author{
			FullName: strings.TrimSpace(name),
			Roles:    []string{role},
			Type:     "PERSON",
		}
		for _, aff := range f.Subfields.All("u") {
			if aff == "et al." || aff == "et al" {
				continue
			}
			author.Affiliations = append(author.Affiliations, entities.Affiliation{Name: aff})
		}
		doc.Authors = append(doc.Authors, author)
		return nil
	})

	m.Over("^110__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		name, err := req(f, "a")
		if err != nil {
			return err
		}
		doc.Authors = append(doc.Authors, entities.Author{
			FullName: strings.TrimSpace(name),
			Roles:    []string{"AUTHOR"},
			Type:     "ORGANISATION",
		})
		return nil
	})

	m.Over("^020__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		value := f.Subfields.First("a")
		if value == "" {
			value = f.Subfields.First("z")
		}
		if value == "" {
			return &entities.ManualImportRequired{
				FieldError: entities.FieldError{Subfield: "a or z"},
			}
		}
		doc.Identifiers = appendIdentifier(doc.Identifiers, entities.Identifier{
			Scheme:   entities.SchemeISBN,
			Value:    value,
			Material: strings.TrimSpace(f.Subfields.First("u")),
		})
		return nil
	})

	m.Over("^0247_", func(doc *entities.DocumentMetadata, key string, f Field) error {
		source := strings.ToLower(f.Subfields.First("2"))
		if source == "asin" {
			return nil
		}
		if source != "doi" {
			return &entities.UnexpectedValue{
				FieldError: entities.FieldError{Subfield: "2", Reason: "unknown identifier source"},
			}
		}
		value, err := req(f, "a")
		if err != nil {
			return err
		}
		material, ok := cdsDOIMaterials[strings.ToLower(f.Subfields.First("q"))]
		if !ok {
			return &entities.UnexpectedValue{
				FieldError: entities.FieldError{Subfield: "q", Reason: "unknown material"},
			}
		}
		doc.Identifiers = appendIdentifier(doc.Identifiers, entities.Identifier{
			Scheme:   entities.SchemeDOI,
			Value:    value,
			Material: material,
		})
		return nil
	})

	m.Over("^041__", func(doc *entities.DocumentMetadata, key string, f Field) error {
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

	m.Over("(^050_4)|(^05000)", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Subjects = appendSubject(doc.Subjects, entities.Subject{
			Scheme: "LOC",
			Value:  strings.TrimSpace(f.Subfields.First("a")),
		})
		return nil
	})

	m.Over("(^080__)|(^082__)|(^08204)", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Subjects = appendSubject(doc.Subjects, entities.Subject{
			Scheme: "UDC",
			Value:  strings.TrimSpace(f.Subfields.First("a")),
		})
		return nil
	})

	m.Over("^250__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		doc.Edition = strings.TrimSpace(strings.ReplaceAll(f.Subfields.First("a"), "ed.", ""))
		return nil
	})

	m.Over("^260__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		date, err := req(f, "c")
		if err != nil {
			return err
		}
		year := firstNumber(date)
		if len(year) != 4 {
			return &entities.UnexpectedValue{
				FieldError: entities.FieldError{Subfield: "c", Reason: "no publication year"},
			}
		}
		doc.PublicationYear = year
		doc.Imprint = &entities.Imprint{
			Place:     strings.TrimSpace(f.Subfields.First("a")),
			Publisher: strings.TrimSpace(f.Subfields.First("b")),
			Date:      strings.TrimSpace(date),
		}
		return nil
	})

	m.Over("^300__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		if pages := pageCount(f.Subfields.First("a")); pages != "" {
			doc.PhysicalDescription = pages + " pages"
		}
		return nil
	})

	m.Over("^490__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		title, err := req(f, "a")
		if err != nil {
			return err
		}
		descriptor := entities.SeriesDescriptor{
			Title:  collapse(strings.TrimSpace(title)),
			Volume: firstNumber(f.Subfields.First("v")),
		}
		if issn := f.Subfields.First("x"); issn != "" {
			descriptor.Identifiers = []entities.Identifier{{
				Scheme: entities.SchemeISSN,
				Value:  strings.TrimRight(issn, " ;"),
			}}
		}
		doc.Serial = append(doc.Serial, descriptor)
		return nil
	})

	m.Over("^520__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		abstract, err := req(f, "a")
		if err != nil {
			return err
		}
		if doc.Abstract == "" {
			doc.Abstract = strings.TrimSpace(abstract)
		} else {
			doc.AlternativeAbstracts = append(doc.AlternativeAbstracts, strings.TrimSpace(abstract))
		}
		return nil
	})

	m.Over("^6531_", func(doc *entities.DocumentMetadata, key string, f Field) error {
		keyword := strings.TrimSpace(f.Subfields.First("a"))
		if keyword == "" {
			return errSkipField
		}
		for _, existing := range doc.Keywords {
			if existing == keyword {
				return errSkipField
			}
		}
		doc.Keywords = append(doc.Keywords, keyword)
		return nil
	})

	m.Over("(^111__)|(^711__)", func(doc *entities.DocumentMetadata, key string, f Field) error {
		title, err := req(f, "a")
		if err != nil {
			return err
		}
		doc.ConferenceInfo = append(doc.ConferenceInfo, entities.ConferenceInfo{
			Title:   strings.TrimSpace(title),
			Place:   strings.TrimSpace(f.Subfields.First("c")),
			Dates:   strings.TrimSpace(f.Subfields.First("d")),
			Acronym: strings.TrimSpace(f.Subfields.First("g")),
		})
		return nil
	})

	// Proxy-wrapped urls are unwrapped here; the proxy prefix is put back
	// at serialization time for login-required eitems.
	m.Over("^8564_", func(doc *entities.DocumentMetadata, key string, f Field) error {
		value, err := req(f, "u")
		if err != nil {
			return err
		}
		url := entities.URL{Value: value}
		if desc := f.Subfields.First("y"); desc != "" && desc != "ebook" {
			url.Description = desc
		}
		if i := strings.Index(value, "/login?url="); i >= 0 {
			url.Value = value[i+len("/login?url="):]
			url.LoginRequired = true
		}
		doc.EItem.URLs = append(doc.EItem.URLs, url)
		return nil
	})

	var explicitType entities.DocumentType
	m.Over("(^980__)|(^690C_)|(^697C_)|(^960__)", func(doc *entities.DocumentMetadata, key string, f Field) error {
		for _, code := range []string{"a", "b"} {
			raw := strings.ToUpper(strings.TrimSpace(f.Subfields.First(code)))
			if raw == "" {
				continue
			}
			docType, ok := cdsDocumentTypes[raw]
			if !ok {
				continue
			}
			if explicitType != "" && explicitType != docType {
				return &entities.ManualImportRequired{
					FieldError: entities.FieldError{Subfield: code, Reason: "inconsistent document type"},
				}
			}
			explicitType = docType
			doc.DocumentType = docType
		}
		return nil
	})

	m.Over("^859__", func(doc *entities.DocumentMetadata, key string, f Field) error {
		// submitter email, kept for provenance
		if v := f.Subfields.First("f"); v != "" {
			doc.CreatedBy = &entities.CreatedBy{Type: entities.CreatedByTypeUser, Value: v}
		}
		return nil
	})

	return m
}
