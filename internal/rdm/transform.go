// Package rdm maps the research-data repository's JSON record dialect into
// the internal document schema. It is the JSON counterpart of the MARCXML
// rule registries: the rdm provider ships records over HTTP with a dedicated
// content type instead of file uploads.
package rdm

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"strings"

	"github.com/openils/importer/internal/entities"
)

var authorTypes = map[string]string{
	"personal":       "PERSON",
	"organisational": "ORGANISATION",
}

var authorRoles = map[string]string{
	"contactperson":         "CONTACT_PERSON",
	"datacollector":         "DATA_COLLECTOR",
	"datacurator":           "DATA_CURATOR",
	"datamanager":           "DATA_MANAGER",
	"distributor":           "DISTRIBUTOR",
	"editor":                "EDITOR",
	"hostinginstitution":    "HOSTING_INSTITUTION",
	"other":                 "OTHER",
	"producer":              "PRODUCER",
	"projectleader":         "PROJECT_LEADER",
	"projectmanager":        "PROJECT_MANAGER",
	"registrationagency":    "REGISTRATION_AGENCY",
	"registrationauthority": "REGISTRATION_AUTHORITY",
	"relatedperson":         "RELATED_PERSON",
	"researcher":            "RESEARCHER",
	"researchgroup":         "RESEARCH_GROUP",
	"sponsor":               "SPONSOR",
	"rightsholder":          "RIGHTS_HOLDER",
	"supervisor":            "SUPERVISOR",
	"workpackageleader":     "WORK_PACKAGE_LEADER",
}

var authorIdentifierSchemes = map[string]string{"orcid": "ORCID"}

var identifierSchemes = map[string]string{
	"doi":     entities.SchemeDOI,
	"isbn":    entities.SchemeISBN,
	"cds_ref": entities.SchemeReportNumber,
}

var alternativeIdentifierSchemes = map[string]string{
	"arxiv":   "ARXIV",
	"handle":  "HDL",
	"inspire": "INSPIRE",
}

var alternativeTitleTypes = map[string]string{
	"other":             entities.AlternativeTitleOther,
	"subtitle":          entities.AlternativeTitleSubtitle,
	"translated-title":  entities.AlternativeTitleTranslatedTitle,
	"alternative-title": entities.AlternativeTitleAlternative,
}

var documentTypeTags = map[string]string{"publication-thesis": "THESIS"}

var conferenceIdentifierSchemes = map[string]string{
	"url":     "OTHER",
	"inspire": "INSPIRE_CNUM",
}

// eitemFileExtensions are the uploaded file types served as e-book urls.
var eitemFileExtensions = map[string]bool{"pdf": true, "doc": true, "docx": true}

type vocabularyTerm struct {
	ID string `json:"id"`
}

type rdmIdentifier struct {
	Scheme     string `json:"scheme"`
	Identifier string `json:"identifier"`
}

type typedText struct {
	Type        vocabularyTerm `json:"type"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Lang        vocabularyTerm `json:"lang"`
}

type creator struct {
	PersonOrOrg struct {
		Name        string          `json:"name"`
		Type        string          `json:"type"`
		Identifiers []rdmIdentifier `json:"identifiers"`
	} `json:"person_or_org"`
	Role         vocabularyTerm `json:"role"`
	Affiliations []struct {
		Name string `json:"name"`
	} `json:"affiliations"`
}

type meetingField struct {
	Acronym     string          `json:"acronym"`
	Dates       string          `json:"dates"`
	Place       string          `json:"place"`
	Title       string          `json:"title"`
	Identifiers []rdmIdentifier `json:"identifiers"`
}

type journalField struct {
	Title  string `json:"title"`
	Issue  string `json:"issue"`
	Volume string `json:"volume"`
	Pages  string `json:"pages"`
	ISSN   string `json:"issn"`
}

type imprintField struct {
	Place   string `json:"place"`
	Edition string `json:"edition"`
}

type customFields struct {
	Meeting      meetingField   `json:"meeting:meeting"`
	Journal      journalField   `json:"journal:journal"`
	Imprint      imprintField   `json:"imprint:imprint"`
	Accelerators []vocabularyTerm `json:"cern:accelerators"`
	Experiments  []struct {
		Title map[string]string `json:"title"`
	} `json:"cern:experiments"`
	Projects []string `json:"cern:projects"`
	Studies  []string `json:"cern:studies"`
}

type fileEntry struct {
	Ext   string `json:"ext"`
	Links struct {
		Self string `json:"self"`
	} `json:"links"`
}

// Record is one entry of the research-data repository API.
type Record struct {
	ID     string `json:"id"`
	Parent struct {
		ID string `json:"id"`
	} `json:"parent"`
	PIDs map[string]struct {
		Identifier string `json:"identifier"`
	} `json:"pids"`
	Access struct {
		Record string `json:"record"`
	} `json:"access"`
	Files struct {
		Entries map[string]fileEntry `json:"entries"`
	} `json:"files"`
	CustomFields  customFields `json:"custom_fields"`
	InternalNotes []struct {
		Note string `json:"note"`
	} `json:"internal_notes"`
	Metadata struct {
		Title                  string          `json:"title"`
		Description            string          `json:"description"`
		PublicationDate        string          `json:"publication_date"`
		Publisher              string          `json:"publisher"`
		Copyright              string          `json:"copyright"`
		ResourceType           vocabularyTerm  `json:"resource_type"`
		Creators               []creator       `json:"creators"`
		AdditionalTitles       []typedText     `json:"additional_titles"`
		AdditionalDescriptions []typedText     `json:"additional_descriptions"`
		Identifiers            []rdmIdentifier `json:"identifiers"`
		RelatedIdentifiers     []rdmIdentifier `json:"related_identifiers"`
		Subjects               []struct {
			Subject string `json:"subject"`
		} `json:"subjects"`
		Languages []vocabularyTerm `json:"languages"`
		Rights    []vocabularyTerm `json:"rights"`
	} `json:"metadata"`
}

// ParseRecords decodes a payload holding either a single record or a list.
func ParseRecords(r io.Reader) ([]Record, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	trimmed := strings.TrimLeft(string(raw), " \t\r\n")
	if strings.HasPrefix(trimmed, "[") {
		var records []Record
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("parsing records: %w", err)
		}
		return records, nil
	}
	var record Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("parsing record: %w", err)
	}
	return []Record{record}, nil
}

var yearRe = regexp.MustCompile(`\d{4}`)

// Transform builds the internal document for one record.
func Transform(rec Record) (*entities.DocumentMetadata, error) {
	if len(rec.Metadata.Creators) == 0 {
		return nil, &entities.MissingRequiredField{
			FieldError: entities.FieldError{Tag: "creators", Reason: "missing creators (authors) field"},
		}
	}
	if rec.Metadata.Title == "" {
		return nil, &entities.MissingRequiredField{
			FieldError: entities.FieldError{Tag: "title"},
		}
	}
	year := yearRe.FindString(rec.Metadata.PublicationDate)
	if year == "" {
		return nil, &entities.MissingRequiredField{
			FieldError: entities.FieldError{Tag: "publication_date"},
		}
	}

	authors, err := transformAuthors(rec.Metadata.Creators)
	if err != nil {
		return nil, err
	}
	altTitles, err := transformAlternativeTitles(rec.Metadata.AdditionalTitles)
	if err != nil {
		return nil, err
	}
	conference, err := transformConference(rec.CustomFields.Meeting)
	if err != nil {
		return nil, err
	}

	doc := &entities.DocumentMetadata{
		Title:             rec.Metadata.Title,
		Abstract:          rec.Metadata.Description,
		Authors:           authors,
		AlternativeTitles: altTitles,
		ConferenceInfo:    conference,
		DocumentType:      entities.DocumentTypeBook,
		PublicationYear:   year,
		Edition:           rec.CustomFields.Imprint.Edition,
		Restricted:        rec.Access.Record != "public",
		Source:            "CDS",
		AgencyCode:        "SzGeCERN",
		RDMPID:            rec.Parent.ID,
		EItem:             &entities.EItemCandidate{Type: entities.EItemTypeEBook},
	}

	doc.AlternativeIdentifiers = append(doc.AlternativeIdentifiers, entities.Identifier{
		Scheme: "CDS",
		Value:  rec.ID,
	})
	for _, id := range rec.Metadata.Identifiers {
		switch {
		case alternativeIdentifierSchemes[id.Scheme] != "":
			doc.AlternativeIdentifiers = append(doc.AlternativeIdentifiers, entities.Identifier{
				Scheme: alternativeIdentifierSchemes[id.Scheme],
				Value:  id.Identifier,
			})
		case identifierSchemes[id.Scheme] != "":
			doc.Identifiers = append(doc.Identifiers, entities.Identifier{
				Scheme: identifierSchemes[id.Scheme],
				Value:  id.Identifier,
			})
		case id.Scheme == "url":
			doc.URLs = append(doc.URLs, entities.URL{Value: id.Identifier})
		case id.Scheme == "lcds":
			doc.LegacyRecID = id.Identifier
		}
		// anything else is an alt-identifier scheme we do not track
	}
	if doi, ok := rec.PIDs["doi"]; ok && doi.Identifier != "" {
		doc.Identifiers = append([]entities.Identifier{{
			Scheme: entities.SchemeDOI,
			Value:  doi.Identifier,
		}}, doc.Identifiers...)
	}

	for _, desc := range rec.Metadata.AdditionalDescriptions {
		switch desc.Type.ID {
		case "abstract", "other", "methods", "technical-info":
			doc.AlternativeAbstracts = append(doc.AlternativeAbstracts, desc.Description)
		case "physical-description":
			doc.PhysicalDescription = desc.Description
		case "table-of-contents":
			doc.TableOfContent = append(doc.TableOfContent, desc.Description)
		case "series-information":
			doc.Serial = append(doc.Serial, entities.SeriesDescriptor{Title: desc.Description})
		}
	}
	for _, id := range rec.Metadata.RelatedIdentifiers {
		if id.Scheme != "issn" {
			continue
		}
		doc.Serial = append(doc.Serial, entities.SeriesDescriptor{
			Title: "Series " + id.Identifier,
			Identifiers: []entities.Identifier{{
				Scheme: entities.SchemeISSN,
				Value:  id.Identifier,
			}},
		})
	}

	for _, subject := range rec.Metadata.Subjects {
		doc.Keywords = append(doc.Keywords, subject.Subject)
	}
	for _, lang := range rec.Metadata.Languages {
		doc.Languages = append(doc.Languages, strings.ToUpper(lang.ID))
	}
	for _, right := range rec.Metadata.Rights {
		doc.Licenses = append(doc.Licenses, entities.LicenseEntry{
			License: entities.License{ID: strings.ToUpper(right.ID)},
		})
	}
	if rec.Metadata.Copyright != "" {
		doc.Copyrights = []entities.Copyright{{Statement: rec.Metadata.Copyright}}
	}
	for _, note := range rec.InternalNotes {
		doc.InternalNotes = append(doc.InternalNotes, entities.Note{Value: note.Note})
	}
	if tag, ok := documentTypeTags[rec.Metadata.ResourceType.ID]; ok {
		doc.Tags = append(doc.Tags, tag)
	}

	if rec.Metadata.Publisher != "" || rec.CustomFields.Imprint.Place != "" {
		doc.Imprint = &entities.Imprint{
			Publisher: rec.Metadata.Publisher,
			Place:     rec.CustomFields.Imprint.Place,
			Date:      rec.Metadata.PublicationDate,
		}
	}
	if journal := rec.CustomFields.Journal; journal != (journalField{}) {
		doc.PublicationInfo = []entities.PublicationInfo{{
			JournalTitle:  journal.Title,
			JournalIssue:  journal.Issue,
			JournalVolume: journal.Volume,
			Pages:         journal.Pages,
		}}
	}

	doc.Extensions = transformExtensions(rec.CustomFields)

	for _, file := range rec.Files.Entries {
		if !eitemFileExtensions[strings.ToLower(file.Ext)] {
			continue
		}
		doc.EItem.URLs = append(doc.EItem.URLs, entities.URL{
			Value:       file.Links.Self,
			Description: "e-book",
		})
	}

	return doc, nil
}

func transformAuthors(creators []creator) ([]entities.Author, error) {
	authors := make([]entities.Author, 0, len(creators))
	for _, entry := range creators {
		authorType, ok := authorTypes[entry.PersonOrOrg.Type]
		if !ok {
			return nil, &entities.UnexpectedValue{
				FieldError: entities.FieldError{
					Tag:    "creators",
					Reason: "unknown author type " + entry.PersonOrOrg.Type,
				},
			}
		}
		author := entities.Author{
			FullName: entry.PersonOrOrg.Name,
			Type:     authorType,
		}
		if entry.Role.ID != "" {
			role, ok := authorRoles[entry.Role.ID]
			if !ok {
				return nil, &entities.UnexpectedValue{
					FieldError: entities.FieldError{
						Tag:    "creators",
						Reason: "unknown author role " + entry.Role.ID,
					},
				}
			}
			author.Roles = []string{role}
		}
		for _, aff := range entry.Affiliations {
			author.Affiliations = append(author.Affiliations, entities.Affiliation{Name: aff.Name})
		}
		for _, id := range entry.PersonOrOrg.Identifiers {
			scheme, ok := authorIdentifierSchemes[id.Scheme]
			if !ok {
				continue
			}
			author.Identifiers = append(author.Identifiers, entities.Identifier{
				Scheme: scheme,
				Value:  id.Identifier,
			})
		}
		authors = append(authors, author)
	}
	return authors, nil
}

func transformAlternativeTitles(titles []typedText) ([]entities.AlternativeTitle, error) {
	var result []entities.AlternativeTitle
	for _, title := range titles {
		alt := entities.AlternativeTitle{
			Value:    title.Title,
			Language: title.Lang.ID,
		}
		// a subtitle carrying a language is a translated subtitle
		if title.Type.ID == "subtitle" && title.Lang.ID != "" {
			alt.Type = entities.AlternativeTitleTranslatedSubtitle
		} else {
			altType, ok := alternativeTitleTypes[title.Type.ID]
			if !ok {
				return nil, &entities.UnexpectedValue{
					FieldError: entities.FieldError{
						Tag:    "additional_titles",
						Reason: "unknown title type " + title.Type.ID,
					},
				}
			}
			alt.Type = altType
		}
		result = append(result, alt)
	}
	return result, nil
}

func transformConference(meeting meetingField) ([]entities.ConferenceInfo, error) {
	var identifiers []entities.Identifier
	for _, id := range meeting.Identifiers {
		scheme, ok := conferenceIdentifierSchemes[id.Scheme]
		if !ok {
			return nil, &entities.UnexpectedValue{
				FieldError: entities.FieldError{
					Tag:    "meeting",
					Reason: "unknown conference identifier scheme " + id.Scheme,
				},
			}
		}
		identifiers = append(identifiers, entities.Identifier{Scheme: scheme, Value: id.Identifier})
	}
	info := entities.ConferenceInfo{
		Acronym:     meeting.Acronym,
		Dates:       meeting.Dates,
		Place:       meeting.Place,
		Title:       meeting.Title,
		Identifiers: identifiers,
	}
	if info.Acronym == "" && info.Dates == "" && info.Place == "" &&
		info.Title == "" && len(identifiers) == 0 {
		return nil, nil
	}
	return []entities.ConferenceInfo{info}, nil
}

func transformExtensions(fields customFields) map[string]any {
	extensions := map[string]any{}
	if len(fields.Accelerators) > 0 {
		extensions["unit_accelerator"] = fields.Accelerators[0].ID
	}
	var experiments []string
	for _, experiment := range fields.Experiments {
		if title := experiment.Title["en"]; title != "" {
			experiments = append(experiments, title)
		}
	}
	if len(experiments) > 0 {
		extensions["unit_experiment"] = experiments
	}
	if len(fields.Projects) > 0 {
		extensions["unit_project"] = fields.Projects
	}
	if len(fields.Studies) > 0 {
		extensions["unit_study"] = fields.Studies
	}
	if len(extensions) == 0 {
		return nil
	}
	return extensions
}
