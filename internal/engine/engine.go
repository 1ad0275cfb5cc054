// Package engine defines the boundary to the external image generation engine.
package engine

import (
	"context"
	"encoding/json"
	"errors"
)

// Engine is an interface for running an image generation workflow
type Engine interface {
	// Generate runs the given opaque workflow and returns the produced images.
	// image is the resolved init image, nil when the job carries none.
	Generate(ctx context.Context, jobID string, workflow json.RawMessage, image []byte) ([][]byte, error)

	// Check verifies that the engine is reachable
	Check(ctx context.Context) error
}

// Errors
var (
	ErrNoWorkflow = errors.New("no workflow provided")
)
