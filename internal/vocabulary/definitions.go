package vocabulary

// DocumentDefinitions declares the controlled-vocabulary fields of an
// incoming document.
var DocumentDefinitions = Definitions{
	"alternative_identifiers": {Nested: Definitions{
		"scheme": {Source: SourceJSON, Type: "alternative_identifier_scheme"},
	}},
	"alternative_titles": {Nested: Definitions{
		"type": {Source: SourceJSON, Type: "alternative_title_type"},
	}},
	"authors": {Nested: Definitions{
		"affiliations": {Nested: Definitions{
			"identifiers": {Nested: Definitions{
				"scheme": {Source: SourceJSON, Type: "affiliation_identifier_scheme"},
			}},
		}},
		"identifiers": {Nested: Definitions{
			"scheme": {Source: SourceJSON, Type: "author_identifier_scheme"},
		}},
		"roles": {Source: SourceJSON, Type: "author_role"},
		"type":  {Source: SourceJSON, Type: "author_type"},
	}},
	"identifiers": {Nested: Definitions{
		"scheme":   {Source: SourceJSON, Type: "identifier_scheme"},
		"material": {Source: SourceJSON, Type: "doc_identifiers_materials"},
	}},
	"conference_info": {Nested: Definitions{
		"identifiers": {Nested: Definitions{
			"scheme": {Source: SourceJSON, Type: "conference_identifier_scheme"},
		}},
	}},
	"licenses": {Nested: Definitions{
		"license": {Source: SourceSearch, Type: "license"},
	}},
	"subjects": {Nested: Definitions{
		"scheme": {Source: SourceJSON, Type: "doc_subjects"},
	}},
	"tags": {Source: SourceJSON, Type: "tag"},
	// language fields are validated by the transformation rules
}

// SeriesDefinitions declares the controlled-vocabulary fields of an
// incoming series descriptor.
var SeriesDefinitions = Definitions{
	"access_urls": {Nested: Definitions{
		"access_restriction": {Source: SourceJSON, Type: "series_url_access_restriction"},
	}},
	"alternative_titles": {Nested: Definitions{
		"type": {Source: SourceJSON, Type: "alternative_title_type"},
	}},
	"identifiers": {Nested: Definitions{
		"scheme":   {Source: SourceJSON, Type: "series_identifier_scheme"},
		"material": {Source: SourceJSON, Type: "doc_identifiers_materials"},
	}},
	"tags": {Source: SourceJSON, Type: "tag"},
}
