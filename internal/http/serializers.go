package http

import (
	"strings"

	"github.com/openils/importer/internal/entities"
)

// rewriteLoginURLs derives login_required_url for every login-gated eitem
// URL in the records, from the EZproxy template. The derived URL is a view
// concern and never persisted, so it is filled here on the way out.
func rewriteLoginURLs(records []entities.ImportRecord, template string) []entities.ImportRecord {
	if template == "" {
		return records
	}
	out := make([]entities.ImportRecord, len(records))
	for i, record := range records {
		out[i] = record
		if record.EItem == nil || record.EItem.EItem == nil {
			continue
		}
		eitemReport := *record.EItem
		eitem := *record.EItem.EItem
		eitem.URLs = append([]entities.URL(nil), eitem.URLs...)
		for j := range eitem.URLs {
			if eitem.URLs[j].LoginRequired {
				eitem.URLs[j].LoginRequiredURL = strings.ReplaceAll(template, "{url}", eitem.URLs[j].Value)
			}
		}
		eitemReport.EItem = &eitem
		out[i].EItem = &eitemReport
	}
	return out
}
