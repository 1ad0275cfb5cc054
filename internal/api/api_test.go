package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/comfyimg/worker-comfyui/internal/api"
	"github.com/comfyimg/worker-comfyui/internal/health"
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

func newRouter(ctx context.Context, engine *mockEngine.Engine, uploader *mockStorage.Uploader) http.Handler {
	log := logger.New(zap.FatalLevel)
	tracer := test.Tracer(log)

	checker := &health.Checker{
		Ctx:    ctx,
		Engine: engine,
		Log:    log,
	}

	publisher := output.New(nil)
	if uploader != nil {
		checker.Storage = uploader
		publisher = output.New(uploader)
	}

	checker.Run()

	a := &api.API{
		Worker: &worker.Worker{
			Resolver:  input.New(time.Second),
			Engine:    engine,
			Publisher: publisher,
			Log:       log,
			Tracer:    tracer,
		},
		HealthChecker:  checker,
		Log:            log,
		Tracer:         tracer,
		HandlerTimeout: time.Minute,
	}

	return a.Router()
}

func TestRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := newRouter(ctx, &mockEngine.Engine{Images: [][]byte{[]byte("image")}}, &mockStorage.Uploader{})
	failingRouter := newRouter(ctx, &mockEngine.Engine{Fail: true}, nil)

	tests := []struct {
		Name            string
		Body            string
		Router          http.Handler
		ExpectedStatus  int
		ExpectedSuccess bool
		ExpectedKind    job.OutputKind
	}{
		{
			Name:            "processes a job",
			Body:            `{"id": "job-42", "input": {"type": "base64", "data": "aGVsbG8="}, "workflow": {"nodes": []}}`,
			Router:          router,
			ExpectedStatus:  http.StatusOK,
			ExpectedSuccess: true,
			ExpectedKind:    job.OutputS3URL,
		},
		{
			Name:            "recovers engine failures into the envelope",
			Body:            `{"workflow": {"nodes": []}}`,
			Router:          failingRouter,
			ExpectedStatus:  http.StatusOK,
			ExpectedSuccess: false,
			ExpectedKind:    job.OutputError,
		},
		{
			Name:            "recovers input failures into the envelope",
			Body:            `{"input": {"type": "ftp", "data": "ftp://example.com"}, "workflow": {"nodes": []}}`,
			Router:          router,
			ExpectedStatus:  http.StatusOK,
			ExpectedSuccess: false,
			ExpectedKind:    job.OutputError,
		},
	}

	for _, test := range tests {
		w := httptest.NewRecorder()
		r, _ := http.NewRequest("POST", "/run", strings.NewReader(test.Body))
		test.Router.ServeHTTP(w, r)

		if w.Code != test.ExpectedStatus {
			t.Errorf("%s: wrong response code %#v", test.Name, w.Code)
			continue
		}

		var response job.Response
		if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
			t.Errorf("%s: %s", test.Name, err)
			continue
		}

		if response.Success != test.ExpectedSuccess {
			t.Errorf("%s: wrong success flag %#v", test.Name, response.Success)
		}

		if len(response.Output) != 1 || response.Output[0].Kind != test.ExpectedKind {
			t.Errorf("%s: wrong output %#v", test.Name, response.Output)
		}
	}
}

func TestRunInvalidEnvelope(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := newRouter(ctx, &mockEngine.Engine{}, nil)

	w := httptest.NewRecorder()
	r, _ := http.NewRequest("POST", "/run", strings.NewReader("{not json"))
	router.ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Errorf("wrong response code %#v", w.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := newRouter(ctx, &mockEngine.Engine{}, &mockStorage.Uploader{})

	w := httptest.NewRecorder()
	r, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("wrong response code %#v", w.Code)
	}

	var status health.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}

	if !status.Healthy {
		t.Errorf("wrong status %+v", status)
	}
}

func TestHealthEndpointUnhealthy(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := newRouter(ctx, &mockEngine.Engine{Fail: true}, nil)

	w := httptest.NewRecorder()
	r, _ := http.NewRequest("GET", "/health", nil)
	router.ServeHTTP(w, r)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("wrong response code %#v", w.Code)
	}

	if contentType := w.Header().Get("Content-Type"); contentType != "application/json" {
		t.Errorf("wrong content type %#v", contentType)
	}

	var status health.Status
	if err := json.Unmarshal(w.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}

	if status.Healthy {
		t.Errorf("wrong status %+v", status)
	}
}

func TestNotFound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router := newRouter(ctx, &mockEngine.Engine{}, nil)

	w := httptest.NewRecorder()
	r, _ := http.NewRequest("GET", "/asdf", nil)
	router.ServeHTTP(w, r)

	if w.Code != http.StatusNotFound {
		t.Errorf("wrong response code %#v", w.Code)
	}
}
