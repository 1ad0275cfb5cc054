package worker_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/comfyimg/worker-comfyui/internal/input"
	"github.com/comfyimg/worker-comfyui/internal/job"
	"github.com/comfyimg/worker-comfyui/internal/logger"
	"github.com/comfyimg/worker-comfyui/internal/output"
	"github.com/comfyimg/worker-comfyui/internal/tracing/test"
	"github.com/comfyimg/worker-comfyui/internal/worker"
	"go.uber.org/zap"

	mockEngine "github.com/comfyimg/worker-comfyui/internal/engine/mock"
	mockStorage "github.com/comfyimg/worker-comfyui/internal/storage/mock"
)

var workflow = json.RawMessage(`{"nodes": []}`)

func newWorker(engine *mockEngine.Engine, uploader *mockStorage.Uploader) *worker.Worker {
	log := logger.New(zap.FatalLevel)

	w := &worker.Worker{
		Resolver:  input.New(time.Second),
		Engine:    engine,
		Publisher: output.New(nil),
		Log:       log,
		Tracer:    test.Tracer(log),
	}

	// Assigning a nil *mock.Uploader directly would make the interface non-nil
	if uploader != nil {
		w.Publisher = output.New(uploader)
	}

	return w
}

func TestProcess(t *testing.T) {
	engine := &mockEngine.Engine{Images: [][]byte{[]byte("image")}}
	w := newWorker(engine, &mockStorage.Uploader{})

	response := w.Process(context.Background(), job.Request{
		ID:       "job-42",
		Input:    &job.InputDescriptor{Kind: job.InputBase64, Payload: "aGVsbG8="},
		Workflow: workflow,
	})

	if !response.Success {
		t.Fatalf("unexpected failure %#v", response.Output)
	}

	if response.JobID != "job-42" {
		t.Errorf("wrong job id %#v", response.JobID)
	}

	if len(response.Output) != 1 || response.Output[0].Kind != job.OutputS3URL {
		t.Errorf("wrong output %#v", response.Output)
	}

	if response.Timestamp == "" {
		t.Error("missing timestamp")
	}
}

func TestProcessMultipleOutputs(t *testing.T) {
	engine := &mockEngine.Engine{Images: [][]byte{[]byte("one"), []byte("two")}}
	w := newWorker(engine, nil)

	response := w.Process(context.Background(), job.Request{Workflow: workflow})

	if !response.Success {
		t.Fatalf("unexpected failure %#v", response.Output)
	}

	if response.JobID == "" {
		t.Error("missing assigned job id")
	}

	if len(response.Output) != 2 {
		t.Fatalf("wrong output count %d", len(response.Output))
	}

	for _, descriptor := range response.Output {
		if descriptor.Kind != job.OutputBase64 {
			t.Errorf("wrong kind %#v", descriptor.Kind)
		}
	}
}

func TestProcessZeroOutputs(t *testing.T) {
	// A workflow without a save node completes without producing images,
	// which is a success with an empty output, not an error
	w := newWorker(&mockEngine.Engine{}, nil)

	response := w.Process(context.Background(), job.Request{Workflow: workflow})

	if !response.Success {
		t.Fatalf("unexpected failure %#v", response.Output)
	}

	if len(response.Output) != 0 {
		t.Fatalf("wrong output count %d", len(response.Output))
	}

	data, err := json.Marshal(response)
	if err != nil {
		t.Fatal(err)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatal(err)
	}

	if string(envelope["output"]) != "[]" {
		t.Errorf("wrong output json %#v", string(envelope["output"]))
	}
}

func TestProcessInputFailureShortCircuits(t *testing.T) {
	engine := &mockEngine.Engine{Images: [][]byte{[]byte("image")}}
	w := newWorker(engine, nil)

	response := w.Process(context.Background(), job.Request{
		Input:    &job.InputDescriptor{Kind: "ftp", Payload: "ftp://example.com/x.png"},
		Workflow: workflow,
	})

	if response.Success {
		t.Fatal("expected failure")
	}

	if len(response.Output) != 1 || response.Output[0].Kind != job.OutputError {
		t.Fatalf("wrong output %#v", response.Output)
	}

	// The engine never runs when input resolution fails
	if engine.Calls() != 0 {
		t.Errorf("engine was invoked %d times", engine.Calls())
	}
}

func TestProcessEngineFailure(t *testing.T) {
	w := newWorker(&mockEngine.Engine{Fail: true}, nil)

	response := w.Process(context.Background(), job.Request{Workflow: workflow})

	if response.Success {
		t.Fatal("expected failure")
	}

	if len(response.Output) != 1 || response.Output[0].Kind != job.OutputError {
		t.Fatalf("wrong output %#v", response.Output)
	}
}

func TestProcessMissingWorkflow(t *testing.T) {
	engine := &mockEngine.Engine{Images: [][]byte{[]byte("image")}}
	w := newWorker(engine, nil)

	response := w.Process(context.Background(), job.Request{})

	if response.Success {
		t.Fatal("expected failure")
	}

	if engine.Calls() != 0 {
		t.Errorf("engine was invoked %d times", engine.Calls())
	}
}

func TestProcessUploadFailure(t *testing.T) {
	engine := &mockEngine.Engine{Images: [][]byte{[]byte("image")}}
	w := newWorker(engine, &mockStorage.Uploader{Fail: true})

	response := w.Process(context.Background(), job.Request{Workflow: workflow})

	if response.Success {
		t.Fatal("expected failure")
	}

	if len(response.Output) != 1 || response.Output[0].Kind != job.OutputError {
		t.Fatalf("wrong output %#v", response.Output)
	}
}
