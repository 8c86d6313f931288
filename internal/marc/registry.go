package marc

import (
	"github.com/openils/importer/internal/entities"
)

// Providers with a MARCXML rule registry. The rdm provider ships JSON and
// has no model here.
const (
	ProviderCDS      = "cds"
	ProviderSpringer = "springer"
	ProviderEBL      = "ebl"
	ProviderSafari   = "safari"
)

var models = map[string]func() *Model{
	ProviderCDS:      cdsModel,
	ProviderSpringer: springerModel,
	ProviderEBL:      eblModel,
	ProviderSafari:   safariModel,
}

// ModelFor returns a fresh rule registry for the provider.
func ModelFor(provider string) (*Model, error) {
	build, ok := models[provider]
	if !ok {
		return nil, &entities.UnknownProvider{Provider: provider}
	}
	return build(), nil
}
