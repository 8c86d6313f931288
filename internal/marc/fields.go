package marc

import (
	"regexp"
	"strings"

	"github.com/openils/importer/internal/entities"
)

// req returns the subfield value and fails with a missing-field error when
// it is absent or empty.
func req(f Field, code string) (string, error) {
	v := f.Subfields.First(code)
	if v == "" {
		return "", &entities.MissingRequiredField{
			FieldError: entities.FieldError{Subfield: code},
		}
	}
	return v, nil
}

var roleTranslations = map[string]string{
	"author":  "AUTHOR",
	"author.": "AUTHOR",
	"dir.":    "SUPERVISOR",
	"dir":     "SUPERVISOR",
	"ed.":     "EDITOR",
	"editor":  "EDITOR",
	"editor.": "EDITOR",
	"ed":      "EDITOR",
	"ill.":    "ILLUSTRATOR",
	"ill":     "ILLUSTRATOR",
	"trans.":  "TRANSLATOR",
	"trans":   "TRANSLATOR",
}

// contributorRole normalizes a relator term, defaulting to AUTHOR when the
// subfield is absent.
func contributorRole(code, raw string) (string, error) {
	if raw == "" {
		return "AUTHOR", nil
	}
	role, ok := roleTranslations[strings.ToLower(raw)]
	if !ok {
		return "", &entities.UnexpectedValue{
			FieldError: entities.FieldError{Subfield: code, Reason: "unknown role"},
		}
	}
	return role, nil
}

// ISO 639-2/B codes for the languages the suppliers actually ship. Codes
// are normalized to upper case bibliographic alpha-3.
var languageCodes = map[string]string{
	"en": "ENG", "eng": "ENG", "english": "ENG",
	"fr": "FRE", "fre": "FRE", "fra": "FRE", "french": "FRE",
	"de": "GER", "ger": "GER", "deu": "GER", "german": "GER",
	"es": "SPA", "spa": "SPA", "spanish": "SPA",
	"it": "ITA", "ita": "ITA", "italian": "ITA",
	"pt": "POR", "por": "POR", "portuguese": "POR",
	"ru": "RUS", "rus": "RUS", "russian": "RUS",
	"zh": "CHI", "chi": "CHI", "zho": "CHI", "chinese": "CHI",
	"ja": "JPN", "jpn": "JPN", "japanese": "JPN",
	"nl": "DUT", "dut": "DUT", "nld": "DUT", "dutch": "DUT",
	"pl": "POL", "pol": "POL", "polish": "POL",
	"el": "GRE", "gre": "GRE", "ell": "GRE", "greek": "GRE",
	"no": "NOR", "nor": "NOR", "norwegian": "NOR",
	"sv": "SWE", "swe": "SWE", "swedish": "SWE",
	"da": "DAN", "dan": "DAN", "danish": "DAN",
	"ar": "ARA", "ara": "ARA", "arabic": "ARA",
	"he": "HEB", "heb": "HEB", "hebrew": "HEB",
	"ko": "KOR", "kor": "KOR", "korean": "KOR",
	"tr": "TUR", "tur": "TUR", "turkish": "TUR",
}

func lookupLanguage(code, raw string) (string, error) {
	lang, ok := languageCodes[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", &entities.UnexpectedValue{
			FieldError: entities.FieldError{Subfield: code, Reason: "unknown language"},
		}
	}
	return lang, nil
}

var digitsRe = regexp.MustCompile(`\d+`)

// firstNumber extracts the first digit run of a free-text count field.
func firstNumber(s string) string {
	return digitsRe.FindString(s)
}

var pagesRe = regexp.MustCompile(`(\d+)\s*(?:pages|p\b)`)

// pageCount extracts the page number of a physical description, preferring
// the figure next to "pages" over leading counts like "1 online resource".
func pageCount(s string) string {
	if m := pagesRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return firstNumber(s)
}

func appendIdentifier(list []entities.Identifier, id entities.Identifier) []entities.Identifier {
	for _, existing := range list {
		if existing == id {
			return list
		}
	}
	return append(list, id)
}

func appendSubject(list []entities.Subject, s entities.Subject) []entities.Subject {
	for _, existing := range list {
		if existing == s {
			return list
		}
	}
	return append(list, s)
}
