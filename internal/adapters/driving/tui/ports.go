// Package tui provides the interactive chat interface for quarry.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/quarry/internal/core/ports/driving"
)

// Ports aggregates the driving ports the chat needs.
type Ports struct {
	// Agent answers questions.
	Agent driving.AgentService

	// Query lists the databases shown in the header. Optional.
	Query driving.QueryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil || p.Agent == nil {
		return ErrMissingAgentService
	}
	return nil
}
