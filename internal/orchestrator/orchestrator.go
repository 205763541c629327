// Package orchestrator drives one upload-and-render cycle: submit the file,
// classify the answer, then render, clear or report an error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/KaramelBytes/csvglance/internal/client"
	"github.com/KaramelBytes/csvglance/internal/logging"
	"github.com/KaramelBytes/csvglance/internal/pipeline"
	"github.com/google/uuid"
)

// User-visible status texts.
const (
	StatusUploading = "Uploading and parsing CSV…"
	StatusNoNumeric = "No numeric columns detected; chart not shown. Try a CSV with numbers."
)

// State is the orchestrator's position in a cycle.
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateRendering
	StateCleared
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateRendering:
		return "rendering"
	case StateCleared:
		return "cleared"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Uploader performs the network call. *client.Client satisfies it.
type Uploader interface {
	Upload(ctx context.Context, filename string, content []byte) (*client.Result, error)
}

// Chart is the single chart owner. *chart.Adapter satisfies it.
type Chart interface {
	Render(series pipeline.NumericSeries) error
	Clear()
}

// Display receives the side effects visible to the user.
type Display interface {
	Status(text string)
	Summary(text string)
	Preview(text string)
}

// Upload is the form payload of one cycle.
type Upload struct {
	Filename string
	Content  []byte
}

// Result describes the terminal state of a cycle.
type Result struct {
	CycleID   string
	State     State
	Status    string
	Series    *pipeline.NumericSeries
	RequestID string
	Err       error
}

// Orchestrator is safe to share between goroutines; cycles are not
// coordinated, so the last one to finish decides the chart.
type Orchestrator struct {
	uploader Uploader
	chart    Chart
	display  Display
	dump     pipeline.DumpFormat
	log      *logging.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithDumpFormat selects how summary and preview are rendered.
func WithDumpFormat(f pipeline.DumpFormat) Option {
	return func(o *Orchestrator) { o.dump = f }
}

// WithLogger sets the diagnostics logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

func New(uploader Uploader, chart Chart, display Display, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		uploader: uploader,
		chart:    chart,
		display:  display,
		dump:     pipeline.DumpJSON,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunCycle performs one submission. It never returns an error or panics;
// failures end in StateFailed with an "Error: ..." status.
func (o *Orchestrator) RunCycle(ctx context.Context, up Upload) (res Result) {
	res.CycleID = uuid.NewString()
	defer func() {
		if r := recover(); r != nil {
			res = o.fail(res, fmt.Errorf("internal error: %v", r))
		}
	}()

	o.log.Debug("cycle %s: %s submitting %s (%d bytes)", res.CycleID, StateIdle, up.Filename, len(up.Content))
	res.State = StateSubmitting
	o.setStatus(&res, StatusUploading)

	out, err := o.uploader.Upload(ctx, up.Filename, up.Content)
	if err != nil {
		return o.fail(res, err)
	}
	if out == nil {
		return o.fail(res, &client.TransportError{Err: errors.New("empty response")})
	}
	res.RequestID = out.RequestID

	switch oc := pipeline.Classify(out.Response, out.OK, out.StatusCode).(type) {
	case pipeline.Failure:
		return o.fail(res, &client.ServiceError{StatusCode: out.StatusCode, Message: oc.Message, RequestID: out.RequestID})
	case pipeline.NoNumericData:
		o.emitDumps(out.Response)
		o.chart.Clear()
		res.State = StateCleared
		o.setStatus(&res, StatusNoNumeric)
	case pipeline.Chartable:
		o.emitDumps(out.Response)
		series := pipeline.BuildSeries(oc.Preview, oc.Column)
		if err := o.chart.Render(series); err != nil {
			return o.fail(res, err)
		}
		res.Series = &series
		res.State = StateRendering
		o.setStatus(&res, "")
	}
	o.log.Info("cycle %s: %s (request %s)", res.CycleID, res.State, res.RequestID)
	return res
}

func (o *Orchestrator) fail(res Result, err error) Result {
	o.chart.Clear()
	res.State = StateFailed
	res.Err = err
	res.Series = nil
	o.setStatus(&res, "Error: "+client.Message(err))
	o.log.Warn("cycle %s: failed: %v", res.CycleID, err)
	return res
}

func (o *Orchestrator) setStatus(res *Result, text string) {
	res.Status = text
	if o.display != nil {
		o.display.Status(text)
	}
}

func (o *Orchestrator) emitDumps(resp *pipeline.AnalysisResponse) {
	if o.display == nil {
		return
	}
	summary, preview, err := pipeline.DumpResponse(resp, o.dump)
	if err != nil {
		o.log.Warn("dump response: %v", err)
		return
	}
	o.display.Summary(summary)
	o.display.Preview(preview)
}
