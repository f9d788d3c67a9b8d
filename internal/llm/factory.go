package llm

import (
	"fmt"
	"strings"

	"scribbly/internal/entity"
)

// NewService instantiates an ImageService implementation for a provider.
func NewService(provider *entity.DbProvider) (ImageService, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider config is nil")
	}

	driver := strings.ToLower(strings.TrimSpace(provider.Driver))
	if driver == "" {
		driver = strings.ToLower(strings.TrimSpace(provider.ID))
	}

	switch driver {
	case entity.ProviderDriverOpenRouter:
		return NewOpenRouter(provider)
	case entity.ProviderDriverGemini:
		return NewGemini(provider)
	case entity.ProviderDriverFal:
		return NewFalAI(provider)
	case entity.ProviderDriverVolcengine:
		return NewVolcengine(provider)
	default:
		return nil, fmt.Errorf("unsupported provider driver: %s", provider.Driver)
	}
}
