package chart

import (
	"fmt"
	"sync"

	"github.com/KaramelBytes/csvglance/internal/logging"
	"github.com/KaramelBytes/csvglance/internal/pipeline"
)

// Dataset is one named series of bar heights.
type Dataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// Data holds the x-axis labels and the datasets drawn against them.
type Data struct {
	Labels   []int     `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Options mirrors the display switches a surface may honour.
type Options struct {
	Responsive bool `json:"responsive"`
	Legend     bool `json:"legend"`
}

// Config is what a Surface needs to construct a chart instance.
type Config struct {
	Type    string  `json:"type"`
	Data    Data    `json:"data"`
	Options Options `json:"options"`
}

// BarConfig builds a single-series bar chart configuration.
func BarConfig(s pipeline.NumericSeries) Config {
	labels := make([]int, len(s.Labels))
	copy(labels, s.Labels)
	values := make([]float64, len(s.Values))
	copy(values, s.Values)
	return Config{
		Type: "bar",
		Data: Data{
			Labels:   labels,
			Datasets: []Dataset{{Label: s.Label, Data: values}},
		},
		Options: Options{Responsive: true, Legend: true},
	}
}

// Instance is one live chart bound to a surface.
type Instance interface {
	Destroy() error
}

// Surface constructs chart instances on a single drawable target.
type Surface interface {
	Create(cfg Config) (Instance, error)
}

// Resetter is implemented by surfaces that can hold a chart the adapter does
// not own, such as an image file left by an earlier process. Clear on an
// idle adapter calls Reset so the surface ends up empty.
type Resetter interface {
	Reset() error
}

// State of the adapter.
type State int

const (
	StateIdle State = iota
	StateShowing
)

func (s State) String() string {
	if s == StateShowing {
		return "showing"
	}
	return "idle"
}

// RenderError reports a surface that failed to construct a chart.
type RenderError struct {
	Err error
}

func (e *RenderError) Error() string { return fmt.Sprintf("render chart: %v", e.Err) }
func (e *RenderError) Unwrap() error { return e.Err }

// Adapter owns the single chart instance on a surface.
// Every Render replaces the previous instance; nothing is mutated in place.
type Adapter struct {
	mu      sync.Mutex
	surface Surface
	current Instance
	log     *logging.Logger
}

// NewAdapter binds an adapter to its surface. log may be nil.
func NewAdapter(surface Surface, log *logging.Logger) *Adapter {
	if log == nil {
		log = logging.Discard()
	}
	return &Adapter{surface: surface, log: log}
}

// Render destroys any live instance and constructs a new one for series.
// On failure the adapter is left Idle.
func (a *Adapter) Render(series pipeline.NumericSeries) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.destroyLocked()
	inst, err := a.surface.Create(BarConfig(series))
	if err != nil {
		return &RenderError{Err: err}
	}
	a.current = inst
	a.log.Debug("chart: rendered %q with %d bars", series.Label, series.Len())
	return nil
}

// Clear releases the live instance, if any, and otherwise resets the surface.
func (a *Adapter) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		a.destroyLocked()
		return
	}
	if r, ok := a.surface.(Resetter); ok {
		if err := r.Reset(); err != nil {
			a.log.Warn("chart: reset failed: %v", err)
		}
	}
}

// State reports whether an instance is live.
func (a *Adapter) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.current != nil {
		return StateShowing
	}
	return StateIdle
}

func (a *Adapter) destroyLocked() {
	if a.current == nil {
		return
	}
	if err := a.current.Destroy(); err != nil {
		// the handle is dropped regardless; a second Destroy cannot help
		a.log.Warn("chart: destroy failed: %v", err)
	}
	a.current = nil
}
