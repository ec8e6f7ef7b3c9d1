package driving

import "github.com/custodia-labs/quarry/internal/core/domain"

// SettingsService exposes resolved application settings.
type SettingsService interface {
	// Get returns the current settings with defaults and environment applied.
	Get() (*domain.AppSettings, error)

	// Set stores a single key and persists the configuration.
	Set(key, value string) error

	// Keys lists the configurable keys with their effective values.
	Keys() map[string]string
}
