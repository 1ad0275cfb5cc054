// Package worker runs the resolve, generate, publish pipeline for one job.
package worker

import (
	"context"
	"fmt"

	"github.com/comfyimg/worker-comfyui/internal/engine"
	"github.com/comfyimg/worker-comfyui/internal/input"
	"github.com/comfyimg/worker-comfyui/internal/job"
	"github.com/comfyimg/worker-comfyui/internal/logger"
	"github.com/comfyimg/worker-comfyui/internal/metrics"
	"github.com/comfyimg/worker-comfyui/internal/output"
	"github.com/comfyimg/worker-comfyui/internal/tracing"
	"github.com/google/uuid"
)

// Worker processes job envelopes
type Worker struct {
	Resolver  *input.Resolver
	Engine    engine.Engine
	Publisher *output.Publisher
	Log       *logger.Logger
	Tracer    *tracing.Tracer
}

// Process runs one job through the pipeline and returns the response
// envelope. Every failure is recovered into an error-kind output with
// success set to false, a job never kills the process.
func (w *Worker) Process(ctx context.Context, req job.Request) job.Response {
	jobID := req.ID
	if jobID == "" {
		jobID = uuid.NewString()
	}

	response := w.process(ctx, jobID, req)
	metrics.ObserveJob(response.Success)

	return response
}

func (w *Worker) process(ctx context.Context, jobID string, req job.Request) job.Response {
	if len(req.Workflow) == 0 {
		return w.fail(jobID, engine.ErrNoWorkflow)
	}

	var image []byte
	if req.Input != nil {
		spanCtx, span := w.Tracer.Start(ctx, "resolve-input")
		data, err := w.Resolver.Resolve(spanCtx, *req.Input)
		span.End()
		if err != nil {
			return w.fail(jobID, err)
		}

		image = data
	}

	generateCtx, span := w.Tracer.Start(ctx, "generate")
	images, err := w.Engine.Generate(generateCtx, jobID, req.Workflow, image)
	span.End()
	if err != nil {
		return w.fail(jobID, fmt.Errorf("generation failed: %s", err))
	}

	publishCtx, span := w.Tracer.Start(ctx, "publish")
	defer span.End()

	outputs := make(job.Output, 0, len(images))
	for index, data := range images {
		outputs = append(outputs, w.Publisher.Publish(publishCtx, jobID, index, data))
	}

	response := job.NewResponse(jobID, outputs)
	if !response.Success {
		w.Log.Errorw("job failed during publish", "job-id", jobID)
	}

	return response
}

func (w *Worker) fail(jobID string, err error) job.Response {
	w.Log.Errorw("job failed", "job-id", jobID, "error", err)

	return job.NewResponse(jobID, job.Output{job.Error(err.Error())})
}
