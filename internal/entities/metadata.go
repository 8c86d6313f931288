package entities

// Identifier schemes understood by the importer. The full list lives in the
// identifier_schemes vocabulary; these are the ones the matcher cares about.
const (
	SchemeISBN           = "ISBN"
	SchemeISSN           = "ISSN"
	SchemeDOI            = "DOI"
	SchemeReportNumber   = "REPORT_NUMBER"
	SchemeStandardNumber = "STANDARD_NUMBER"
)

type DocumentType string

const (
	DocumentTypeBook        DocumentType = "BOOK"
	DocumentTypeProceedings DocumentType = "PROCEEDINGS"
	DocumentTypeSerialIssue DocumentType = "SERIAL_ISSUE"
	DocumentTypeStandard    DocumentType = "STANDARD"
	DocumentTypeMultimedia  DocumentType = "MULTIMEDIA"
)

type ModeOfIssuance string

const (
	ModeOfIssuanceSerial    ModeOfIssuance = "SERIAL"
	ModeOfIssuanceMultipart ModeOfIssuance = "MULTIPART_MONOGRAPH"
)

// CreatedBy records the origin of a record: {type:"import", value:provider}
// for imported records, {type:"user", value:username} for manual ones.
type CreatedBy struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

const (
	CreatedByTypeImport = "import"
	CreatedByTypeUser   = "user"
)

type Identifier struct {
	Scheme   string `json:"scheme"`
	Value    string `json:"value"`
	Material string `json:"material,omitempty"`
}

type AlternativeTitle struct {
	Value    string `json:"value"`
	Type     string `json:"type"`
	Language string `json:"language,omitempty"`
}

const (
	AlternativeTitleSubtitle           = "SUBTITLE"
	AlternativeTitleTranslatedTitle    = "TRANSLATED_TITLE"
	AlternativeTitleTranslatedSubtitle = "TRANSLATED_SUBTITLE"
	AlternativeTitleOther              = "OTHER"
	AlternativeTitleAlternative        = "ALTERNATIVE_TITLE"
)

type Affiliation struct {
	Name        string       `json:"name"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
}

type Author struct {
	FullName     string        `json:"full_name"`
	Type         string        `json:"type,omitempty"`
	Roles        []string      `json:"roles,omitempty"`
	Affiliations []Affiliation `json:"affiliations,omitempty"`
	Identifiers  []Identifier  `json:"identifiers,omitempty"`
}

type Imprint struct {
	Publisher string `json:"publisher,omitempty"`
	Place     string `json:"place,omitempty"`
	Date      string `json:"date,omitempty"`
}

type Subject struct {
	Scheme string `json:"scheme"`
	Value  string `json:"value"`
}

type ConferenceInfo struct {
	Acronym     string       `json:"acronym,omitempty"`
	Dates       string       `json:"dates,omitempty"`
	Place       string       `json:"place,omitempty"`
	Title       string       `json:"title,omitempty"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
}

type PublicationInfo struct {
	JournalTitle  string `json:"journal_title,omitempty"`
	JournalVolume string `json:"journal_volume,omitempty"`
	JournalIssue  string `json:"journal_issue,omitempty"`
	Pages         string `json:"pages,omitempty"`
	Year          string `json:"year,omitempty"`
	Note          string `json:"note,omitempty"`
}

type URL struct {
	Value         string `json:"value"`
	Description   string `json:"description,omitempty"`
	LoginRequired bool   `json:"login_required"`

	// LoginRequiredURL is derived at serialization time from the EZproxy
	// template. Never persisted.
	LoginRequiredURL string `json:"login_required_url,omitempty"`
}

type EItemType string

const (
	EItemTypeEBook     EItemType = "E-BOOK"
	EItemTypeAudiobook EItemType = "AUDIOBOOK"
	EItemTypeVideo     EItemType = "VIDEO"
)

// EItemCandidate is the `_eitem` helper payload produced by the
// transformers. The reconciler turns it into a stored EItem.
type EItemCandidate struct {
	Type          EItemType `json:"_type,omitempty"`
	URLs          []URL     `json:"urls,omitempty"`
	Description   string    `json:"description,omitempty"`
	InternalNotes string    `json:"internal_notes,omitempty"`
}

// SeriesDescriptor is one `_serial` entry: the series a document claims to
// belong to, with the document's volume within it.
type SeriesDescriptor struct {
	Title           string       `json:"title"`
	Identifiers     []Identifier `json:"identifiers,omitempty"`
	Volume          string       `json:"volume,omitempty"`
	Publisher       string       `json:"publisher,omitempty"`
	PublicationYear string       `json:"publication_year,omitempty"`
}

// VolumeDescriptor names one physical volume of a multi-volume record.
type VolumeDescriptor struct {
	Volume string `json:"volume"`
	Title  string `json:"title,omitempty"`
}

// VolumeIdentifiers carries per-volume identifier substitutions, matched to
// VolumeDescriptor entries by the Volume field.
type VolumeIdentifiers struct {
	Volume      string       `json:"volume"`
	Identifiers []Identifier `json:"identifiers,omitempty"`
}

// VolumeURLs carries per-volume access URLs.
type VolumeURLs struct {
	Volume string `json:"volume"`
	URLs   []URL  `json:"urls,omitempty"`
}

// VolumeItem carries per-volume publication details.
type VolumeItem struct {
	Volume          string `json:"volume"`
	PublicationYear string `json:"publication_year,omitempty"`
}

// Migration is internal bookkeeping attached by the transformers: flags for
// pending relations, volume descriptors and per-volume field substitutions.
type Migration struct {
	MultivolumeRecord  bool                `json:"multivolume_record,omitempty"`
	MultipartID        string              `json:"multipart_id,omitempty"`
	Volumes            []VolumeDescriptor  `json:"volumes,omitempty"`
	VolumesIdentifiers []VolumeIdentifiers `json:"volumes_identifiers,omitempty"`
	VolumesURLs        []VolumeURLs        `json:"volumes_urls,omitempty"`
	VolumesItems       []VolumeItem        `json:"items,omitempty"`
	HasRelated         bool                `json:"has_related,omitempty"`
}

// DocumentMetadata is the internal document schema every transformer
// normalizes into. Fields with a leading underscore in their JSON name are
// helper metadata consumed by the pipeline and stripped before the document
// is stored.
type DocumentMetadata struct {
	PID                  string             `json:"pid,omitempty"`
	Title                string             `json:"title,omitempty"`
	AlternativeTitles    []AlternativeTitle `json:"alternative_titles,omitempty"`
	Authors              []Author           `json:"authors,omitempty"`
	Identifiers          []Identifier       `json:"identifiers,omitempty"`
	AlternativeIdentifiers []Identifier     `json:"alternative_identifiers,omitempty"`
	PublicationYear      string             `json:"publication_year,omitempty"`
	DocumentType         DocumentType       `json:"document_type,omitempty"`
	Edition              string             `json:"edition,omitempty"`
	Imprint              *Imprint           `json:"imprint,omitempty"`
	Abstract             string             `json:"abstract,omitempty"`
	AlternativeAbstracts []string           `json:"alternative_abstracts,omitempty"`
	Keywords             []string           `json:"keywords,omitempty"`
	Languages            []string           `json:"languages,omitempty"`
	Subjects             []Subject          `json:"subjects,omitempty"`
	Tags                 []string           `json:"tags,omitempty"`
	ConferenceInfo       []ConferenceInfo   `json:"conference_info,omitempty"`
	PublicationInfo      []PublicationInfo  `json:"publication_info,omitempty"`
	TableOfContent       []string           `json:"table_of_content,omitempty"`
	PhysicalDescription  string             `json:"physical_description,omitempty"`
	Copyrights           []Copyright        `json:"copyrights,omitempty"`
	Licenses             []LicenseEntry     `json:"licenses,omitempty"`
	InternalNotes        []Note             `json:"internal_notes,omitempty"`
	URLs                 []URL              `json:"urls,omitempty"`
	Restricted           bool               `json:"restricted,omitempty"`
	Source               string             `json:"source,omitempty"`
	CoverMetadata        map[string]string  `json:"cover_metadata,omitempty"`
	Extensions           map[string]any     `json:"extensions,omitempty"`
	CreatedBy            *CreatedBy         `json:"created_by,omitempty"`
	LegacyRecID          string             `json:"legacy_recid,omitempty"`
	RDMPID               string             `json:"_rdm_pid,omitempty"`

	// Helper metadata, stripped before create.
	EItem         *EItemCandidate    `json:"_eitem,omitempty"`
	AgencyCode    string             `json:"agency_code,omitempty"`
	Serial        []SeriesDescriptor `json:"_serial,omitempty"`
	ProviderRecID string             `json:"provider_recid,omitempty"`
	Migration     *Migration         `json:"_migration,omitempty"`
}

type License struct {
	ID string `json:"id"`
}

type LicenseEntry struct {
	License License `json:"license"`
}

type Note struct {
	Value string `json:"value"`
}

type Copyright struct {
	Year      string `json:"year,omitempty"`
	Statement string `json:"statement"`
}

// HelperFields lists the JSON keys removed from DocumentMetadata before it
// is persisted as a catalog document.
var HelperFields = []string{"_eitem", "agency_code", "_serial", "provider_recid", "_migration"}

// IdentifierValues returns the values of all identifiers with the given
// scheme, in declaration order.
func (m *DocumentMetadata) IdentifierValues(scheme string) []string {
	var values []string
	for _, id := range m.Identifiers {
		if id.Scheme == scheme {
			values = append(values, id.Value)
		}
	}
	return values
}

// AuthorNames returns the full names of all authors, in declaration order.
func (m *DocumentMetadata) AuthorNames() []string {
	var names []string
	for _, a := range m.Authors {
		names = append(names, a.FullName)
	}
	return names
}

// Subtitle returns the first SUBTITLE alternative title, if any.
func (m *DocumentMetadata) Subtitle() string {
	for _, t := range m.AlternativeTitles {
		if t.Type == AlternativeTitleSubtitle {
			return t.Value
		}
	}
	return ""
}

// EItemMetadata is the stored shape of an electronic item.
type EItemMetadata struct {
	PID           string       `json:"pid,omitempty"`
	DocumentPID   string       `json:"document_pid"`
	URLs          []URL        `json:"urls,omitempty"`
	OpenAccess    bool         `json:"open_access"`
	EItemType     EItemType    `json:"eitem_type,omitempty"`
	Identifiers   []Identifier `json:"identifiers,omitempty"`
	Description   string       `json:"description,omitempty"`
	InternalNotes string       `json:"internal_notes,omitempty"`
	CreatedBy     CreatedBy    `json:"created_by"`
}

// ImportProvider reports the provider that imported the record, or "" for
// user-created records.
func (m *EItemMetadata) ImportProvider() string {
	if m.CreatedBy.Type == CreatedByTypeImport {
		return m.CreatedBy.Value
	}
	return ""
}

// SeriesMetadata is the stored shape of a series record.
type SeriesMetadata struct {
	PID             string         `json:"pid,omitempty"`
	Title           string         `json:"title"`
	ModeOfIssuance  ModeOfIssuance `json:"mode_of_issuance"`
	SeriesType      string         `json:"series_type,omitempty"`
	Identifiers     []Identifier   `json:"identifiers,omitempty"`
	AlternativeTitles []AlternativeTitle `json:"alternative_titles,omitempty"`
	Publisher       string         `json:"publisher,omitempty"`
	PublicationYear string         `json:"publication_year,omitempty"`
	CreatedBy       *CreatedBy     `json:"created_by,omitempty"`
	LegacyRecID     string         `json:"legacy_recid,omitempty"`
}
