package chart

import (
	"errors"
	"sync"
	"testing"

	"github.com/KaramelBytes/csvglance/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingSurface tracks how many instances are alive at once.
type countingSurface struct {
	mu       sync.Mutex
	live     int
	maxLive  int
	created  []Config
	failNext bool
}

type countingInstance struct {
	s *countingSurface
}

func (c *countingInstance) Destroy() error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.live--
	return nil
}

func (s *countingSurface) Create(cfg Config) (Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNext {
		s.failNext = false
		return nil, errors.New("no canvas")
	}
	s.live++
	if s.live > s.maxLive {
		s.maxLive = s.live
	}
	s.created = append(s.created, cfg)
	return &countingInstance{s: s}, nil
}

// resettingSurface records Reset calls.
type resettingSurface struct {
	countingSurface
	resets int
}

func (s *resettingSurface) Reset() error {
	s.resets++
	return nil
}

func series(label string, vals ...float64) pipeline.NumericSeries {
	labels := make([]int, len(vals))
	for i := range vals {
		labels[i] = i + 1
	}
	return pipeline.NumericSeries{Label: label, Labels: labels, Values: vals}
}

func TestAdapter_SequentialRendersKeepOneInstance(t *testing.T) {
	s := &countingSurface{}
	a := NewAdapter(s, nil)
	assert.Equal(t, StateIdle, a.State())

	require.NoError(t, a.Render(series("a", 1, 2)))
	require.NoError(t, a.Render(series("b", 3)))

	assert.Equal(t, StateShowing, a.State())
	assert.Equal(t, 1, s.live)
	assert.Equal(t, 1, s.maxLive)
	require.Len(t, s.created, 2)
	assert.Equal(t, "b", s.created[1].Data.Datasets[0].Label)
}

func TestAdapter_ClearIsIdempotent(t *testing.T) {
	s := &countingSurface{}
	a := NewAdapter(s, nil)
	a.Clear()
	assert.Equal(t, StateIdle, a.State())

	require.NoError(t, a.Render(series("a", 1)))
	a.Clear()
	a.Clear()
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, 0, s.live)
}

func TestAdapter_FailedRenderLeavesIdle(t *testing.T) {
	s := &countingSurface{}
	a := NewAdapter(s, nil)
	require.NoError(t, a.Render(series("a", 1)))

	s.failNext = true
	err := a.Render(series("b", 2))
	var rerr *RenderError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, StateIdle, a.State())
	assert.Equal(t, 0, s.live)
}

func TestAdapter_ConcurrentRendersNeverOverlap(t *testing.T) {
	s := &countingSurface{}
	a := NewAdapter(s, nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%3 == 0 {
				a.Clear()
				return
			}
			_ = a.Render(series("x", float64(i)))
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, s.maxLive, 1)
}

func TestBarConfig_CopiesSeries(t *testing.T) {
	in := series("price", 10, 0, 20)
	cfg := BarConfig(in)
	in.Values[0] = 99
	assert.Equal(t, "bar", cfg.Type)
	assert.Equal(t, []int{1, 2, 3}, cfg.Data.Labels)
	require.Len(t, cfg.Data.Datasets, 1)
	assert.Equal(t, "price", cfg.Data.Datasets[0].Label)
	assert.Equal(t, []float64{10, 0, 20}, cfg.Data.Datasets[0].Data)
	assert.True(t, cfg.Options.Legend)
}

func TestAdapter_ClearResetsSurfaceOnlyWhenIdle(t *testing.T) {
	s := &resettingSurface{}
	a := NewAdapter(s, nil)

	a.Clear()
	assert.Equal(t, 1, s.resets)

	require.NoError(t, a.Render(series("x", 1)))
	a.Clear()
	assert.Equal(t, 1, s.resets, "a live instance is destroyed, not reset")
	assert.Equal(t, 0, s.live)
}
