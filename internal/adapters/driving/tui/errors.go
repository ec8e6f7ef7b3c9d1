package tui

import "errors"

// ErrMissingAgentService is returned when the agent service is not provided.
var ErrMissingAgentService = errors.New("tui: agent service is required")

// errCancelled marks a question the user abandoned.
var errCancelled = errors.New("cancelled")
