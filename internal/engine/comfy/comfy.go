// Package comfy implements the engine boundary against a ComfyUI instance
// over its HTTP API.
package comfy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// Defaults
const (
	DefaultAddress      = "http://127.0.0.1:8188"
	DefaultPollInterval = 250 * time.Millisecond
)

// Engine implements an image generation engine backed by ComfyUI
type Engine struct {
	address      string
	clientID     string
	pollInterval time.Duration
	client       *http.Client
}

// New returns a new Engine talking to the ComfyUI instance at the
// given address
func New(address string, requestTimeout time.Duration) *Engine {
	if address == "" {
		address = DefaultAddress
	}

	return &Engine{
		address:      address,
		clientID:     uuid.NewString(),
		pollInterval: DefaultPollInterval,
		client: &http.Client{
			Timeout: requestTimeout,
		},
	}
}

// Generate uploads the init image if present, queues the workflow, waits for
// the prompt to finish, and downloads every image it produced. The overall
// wait is bounded by the context deadline.
func (e *Engine) Generate(ctx context.Context, jobID string, workflow json.RawMessage, image []byte) ([][]byte, error) {
	if image != nil {
		if err := e.uploadImage(ctx, fmt.Sprintf("%s_input.png", jobID), image); err != nil {
			return nil, fmt.Errorf("uploading input image: %w", err)
		}
	}

	promptID, err := e.queuePrompt(ctx, workflow)
	if err != nil {
		return nil, fmt.Errorf("queueing workflow: %w", err)
	}

	outputs, err := e.waitForPrompt(ctx, promptID)
	if err != nil {
		return nil, err
	}

	var images [][]byte
	for _, ref := range outputs {
		data, err := e.fetchImage(ctx, ref)
		if err != nil {
			return nil, fmt.Errorf("fetching output image %s: %w", ref.Filename, err)
		}

		images = append(images, data)
	}

	return images, nil
}

// Check verifies that ComfyUI is reachable
func (e *Engine) Check(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.address+"/system_stats", nil)
	if err != nil {
		return err
	}

	res, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", res.Status)
	}

	return nil
}

// uploadImage places the init image in the ComfyUI input directory so that
// load nodes in the workflow can reference it by filename
func (e *Engine) uploadImage(ctx context.Context, filename string, data []byte) error {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return err
	}

	if _, err := part.Write(data); err != nil {
		return err
	}

	if err := writer.WriteField("overwrite", "true"); err != nil {
		return err
	}

	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.address+"/upload/image", &body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	res, err := e.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", res.Status)
	}

	return nil
}

func (e *Engine) queuePrompt(ctx context.Context, workflow json.RawMessage) (string, error) {
	payload, err := json.Marshal(struct {
		Prompt   json.RawMessage `json:"prompt"`
		ClientID string          `json:"client_id"`
	}{workflow, e.clientID})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.address+"/prompt", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		message, _ := io.ReadAll(res.Body)
		return "", fmt.Errorf("unexpected status %s: %s", res.Status, message)
	}

	var queued struct {
		PromptID string `json:"prompt_id"`
	}
	if err := json.NewDecoder(res.Body).Decode(&queued); err != nil {
		return "", err
	}

	if queued.PromptID == "" {
		return "", fmt.Errorf("no prompt id returned")
	}

	return queued.PromptID, nil
}

// imageRef locates one produced image in the ComfyUI output directory
type imageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

type historyEntry struct {
	Outputs map[string]struct {
		Images []imageRef `json:"images"`
	} `json:"outputs"`
	Status struct {
		Completed bool   `json:"completed"`
		StatusStr string `json:"status_str"`
	} `json:"status"`
}

// waitForPrompt polls the history endpoint until the prompt shows up as
// finished, returning the references of every image it produced
func (e *Engine) waitForPrompt(ctx context.Context, promptID string) ([]imageRef, error) {
	ticker := time.NewTicker(e.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for prompt %s: %w", promptID, ctx.Err())
		case <-ticker.C:
			entry, found, err := e.history(ctx, promptID)
			if err != nil {
				return nil, fmt.Errorf("reading history for prompt %s: %w", promptID, err)
			}

			if !found {
				continue
			}

			if entry.Status.StatusStr == "error" {
				return nil, fmt.Errorf("prompt %s failed", promptID)
			}

			var refs []imageRef
			for _, node := range entry.Outputs {
				refs = append(refs, node.Images...)
			}

			return refs, nil
		}
	}
}

func (e *Engine) history(ctx context.Context, promptID string) (historyEntry, bool, error) {
	var entry historyEntry

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.address+"/history/"+promptID, nil)
	if err != nil {
		return entry, false, err
	}

	res, err := e.client.Do(req)
	if err != nil {
		return entry, false, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return entry, false, fmt.Errorf("unexpected status %s", res.Status)
	}

	var history map[string]historyEntry
	if err := json.NewDecoder(res.Body).Decode(&history); err != nil {
		return entry, false, err
	}

	entry, found := history[promptID]
	if found && len(entry.Outputs) == 0 && !entry.Status.Completed && entry.Status.StatusStr != "error" {
		// Queued but not finished yet
		return entry, false, nil
	}

	return entry, found, nil
}

func (e *Engine) fetchImage(ctx context.Context, ref imageRef) ([]byte, error) {
	query := url.Values{}
	query.Set("filename", ref.Filename)
	query.Set("subfolder", ref.Subfolder)
	query.Set("type", ref.Type)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.address+"/view?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	res, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", res.Status)
	}

	return io.ReadAll(res.Body)
}
