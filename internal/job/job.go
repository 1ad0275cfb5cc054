// Package job defines the request and response envelopes exchanged with the
// invoking harness, and the typed input/output descriptors inside them.
package job

import (
	"encoding/json"
	"time"
)

// InputKind tags how the input payload is to be interpreted
type InputKind string

// Recognized input kinds
const (
	InputBase64 InputKind = "base64"
	InputURL    InputKind = "url"
	InputS3URL  InputKind = "s3_url"
)

// OutputKind tags what the output data contains
type OutputKind string

// Output kinds
const (
	OutputS3URL  OutputKind = "s3_url"
	OutputBase64 OutputKind = "base64"
	OutputError  OutputKind = "error"
)

// InputDescriptor carries the image input of a job. The payload interpretation
// is fully determined by the kind: a standard base64 byte string for base64,
// a fetchable address for url and s3_url.
type InputDescriptor struct {
	Kind    InputKind `json:"type"`
	Payload string    `json:"data"`
}

// OutputDescriptor carries one published artifact, or a human-readable
// message when Kind is OutputError.
type OutputDescriptor struct {
	Kind OutputKind `json:"type"`
	Data string     `json:"data"`
}

// Error returns an error-kind descriptor with the given message
func Error(message string) OutputDescriptor {
	return OutputDescriptor{
		Kind: OutputError,
		Data: message,
	}
}

// Request is the inbound job envelope. ID is optional, the worker assigns one
// when absent. Input is optional for workflows that need no init image.
// Workflow is opaque and forwarded verbatim to the inference engine.
type Request struct {
	ID       string           `json:"id,omitempty"`
	Input    *InputDescriptor `json:"input,omitempty"`
	Workflow json.RawMessage  `json:"workflow,omitempty"`
}

// Output is a list of output descriptors that marshals as a single object
// when it contains exactly one entry
type Output []OutputDescriptor

// MarshalJSON implements json.Marshaler
func (o Output) MarshalJSON() ([]byte, error) {
	if len(o) == 1 {
		return json.Marshal(o[0])
	}

	// A job may legitimately produce no images, which marshals as an
	// empty array rather than null
	if o == nil {
		o = Output{}
	}

	return json.Marshal([]OutputDescriptor(o))
}

// UnmarshalJSON implements json.Unmarshaler
func (o *Output) UnmarshalJSON(data []byte) error {
	var single OutputDescriptor
	if err := json.Unmarshal(data, &single); err == nil {
		*o = Output{single}
		return nil
	}

	var many []OutputDescriptor
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}

	*o = Output(many)
	return nil
}

// Failed reports whether any descriptor is error-kind
func (o Output) Failed() bool {
	for _, descriptor := range o {
		if descriptor.Kind == OutputError {
			return true
		}
	}

	return false
}

// Response is the outbound job envelope
type Response struct {
	Success   bool   `json:"success"`
	JobID     string `json:"job_id"`
	Output    Output `json:"output"`
	Timestamp string `json:"timestamp"`
}

// NewResponse wraps the given output descriptors into a response envelope,
// stamping the current time and deriving the success flag
func NewResponse(jobID string, output Output) Response {
	return Response{
		Success:   !output.Failed(),
		JobID:     jobID,
		Output:    output,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}
