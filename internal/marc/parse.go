package marc

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// Subfields maps a subfield code to its repeated values in source order.
type Subfields map[string][]string

// Field is one controlfield or datafield of a record. Datafield keys carry
// the tag plus both indicators, blanks replaced by underscores ("24510",
// "020__"). Controlfields keep the bare tag ("001") and their value in
// Control.
type Field struct {
	Key       string
	Control   string
	Subfields Subfields
}

// Record is a parsed source record: the leader plus its fields in document
// order.
type Record struct {
	Leader string
	Fields []Field
}

type xmlSubfield struct {
	Code  string `xml:"code,attr"`
	Value string `xml:",chardata"`
}

type xmlControlfield struct {
	Tag   string `xml:"tag,attr"`
	Value string `xml:",chardata"`
}

type xmlDatafield struct {
	Tag       string        `xml:"tag,attr"`
	Ind1      string        `xml:"ind1,attr"`
	Ind2      string        `xml:"ind2,attr"`
	Subfields []xmlSubfield `xml:"subfield"`
}

type xmlRecord struct {
	Leader        string            `xml:"leader"`
	Controlfields []xmlControlfield `xml:"controlfield"`
	Datafields    []xmlDatafield    `xml:"datafield"`
}

func indicator(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "_"
	}
	return s
}

func (r xmlRecord) toRecord() Record {
	rec := Record{Leader: strings.TrimSpace(r.Leader)}
	for _, cf := range r.Controlfields {
		rec.Fields = append(rec.Fields, Field{
			Key:     strings.TrimSpace(cf.Tag),
			Control: strings.TrimSpace(cf.Value),
		})
	}
	for _, df := range r.Datafields {
		subs := Subfields{}
		for _, sf := range df.Subfields {
			code := strings.TrimSpace(sf.Code)
			subs[code] = append(subs[code], strings.TrimSpace(sf.Value))
		}
		key := strings.TrimSpace(df.Tag) + indicator(df.Ind1) + indicator(df.Ind2)
		rec.Fields = append(rec.Fields, Field{Key: key, Subfields: subs})
	}
	return rec
}

// ParseRecords reads a MARCXML payload and returns its records in document
// order. Both a bare <record> root and a <collection> wrapper are accepted,
// with or without the MARC namespace.
func ParseRecords(r io.Reader) ([]Record, error) {
	dec := xml.NewDecoder(r)

	var records []Record
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parsing records: %w", err)
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Local != "record" {
			continue
		}
		var xr xmlRecord
		if err := dec.DecodeElement(&xr, &start); err != nil {
			return nil, fmt.Errorf("parsing record %d: %w", len(records)+1, err)
		}
		records = append(records, xr.toRecord())
	}
	return records, nil
}

// First returns the first value of a subfield code, or the empty string.
func (s Subfields) First(code string) string {
	values := s[code]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// All returns every value of a subfield code.
func (s Subfields) All(code string) []string {
	return s[code]
}

// Has reports whether the subfield code is present with a non-empty value.
func (s Subfields) Has(code string) bool {
	return s.First(code) != ""
}
