// Package parser selects the document parser backend from settings.
package parser

import (
	"fmt"

	"github.com/custodia-labs/quarry/internal/adapters/driven/parser/local"
	"github.com/custodia-labs/quarry/internal/adapters/driven/parser/reducto"
	"github.com/custodia-labs/quarry/internal/core/domain"
	"github.com/custodia-labs/quarry/internal/core/ports/driven"
	"github.com/custodia-labs/quarry/internal/logger"
)

// New creates the parser the settings name.
func New(settings domain.ParserSettings) (driven.DocumentParser, error) {
	switch settings.Backend {
	case domain.ParserBackendReducto:
		p, err := reducto.NewParser(reducto.Config{
			BaseURL:       settings.BaseURL,
			APIKey:        settings.APIKey,
			RatePerSecond: settings.RatePerSecond,
		})
		if err != nil {
			return nil, err
		}
		return p, nil

	case domain.ParserBackendLocal:
		if err := local.CheckAvailable(); err != nil {
			logger.Warn("%v; PDF files will fail to parse.\n%s", err, local.InstallInstructions())
		}
		return local.NewParser(), nil

	default:
		return nil, fmt.Errorf("%w: unknown parser backend %q", domain.ErrInvalidInput, settings.Backend)
	}
}
