package mock

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Engine implements a mock image generation engine
type Engine struct {
	// Images is returned from every Generate call
	Images [][]byte

	// Fail makes every call return an error
	Fail bool

	mutex sync.Mutex
	calls int
}

// Generate returns the configured images
func (e *Engine) Generate(ctx context.Context, jobID string, workflow json.RawMessage, image []byte) ([][]byte, error) {
	e.mutex.Lock()
	e.calls++
	e.mutex.Unlock()

	if e.Fail {
		return nil, errors.New("mock engine error")
	}

	return e.Images, nil
}

// Check verifies nothing
func (e *Engine) Check(ctx context.Context) error {
	if e.Fail {
		return errors.New("mock engine error")
	}

	return nil
}

// Calls returns how many times Generate has been invoked
func (e *Engine) Calls() int {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	return e.calls
}
