package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/KaramelBytes/csvglance/internal/chart"
	"github.com/KaramelBytes/csvglance/internal/client"
	"github.com/KaramelBytes/csvglance/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockUploader struct {
	mock.Mock
}

func (m *MockUploader) Upload(ctx context.Context, filename string, content []byte) (*client.Result, error) {
	args := m.Called(ctx, filename, content)
	res, _ := args.Get(0).(*client.Result)
	return res, args.Error(1)
}

// recordingDisplay keeps every side effect in order.
type recordingDisplay struct {
	mu       sync.Mutex
	statuses []string
	summary  string
	preview  string
}

func (d *recordingDisplay) Status(s string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.statuses = append(d.statuses, s)
}
func (d *recordingDisplay) Summary(s string) { d.summary = s }
func (d *recordingDisplay) Preview(s string) { d.preview = s }

// memSurface counts live chart instances.
type memSurface struct {
	mu      sync.Mutex
	live    int
	last    chart.Config
	fail    error
	created int
}

type memInstance struct{ s *memSurface }

func (i *memInstance) Destroy() error {
	i.s.mu.Lock()
	defer i.s.mu.Unlock()
	i.s.live--
	return nil
}

func (s *memSurface) Create(cfg chart.Config) (chart.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	s.live++
	s.created++
	s.last = cfg
	return &memInstance{s: s}, nil
}

func decoded(t *testing.T, body string, status int) *client.Result {
	t.Helper()
	resp, err := pipeline.DecodeResponse([]byte(body))
	require.NoError(t, err)
	return &client.Result{Response: resp, StatusCode: status, OK: status >= 200 && status < 300, RequestID: "req-1"}
}

const priceBody = `{"summary":{"rows":3,"numericSummary":{"column":"price"}},
	"preview":[{"price":"$10"},{"price":"bad"},{"price":20}]}`

func setup() (*MockUploader, *memSurface, *chart.Adapter, *recordingDisplay) {
	u := &MockUploader{}
	s := &memSurface{}
	return u, s, chart.NewAdapter(s, nil), &recordingDisplay{}
}

func TestRunCycle_Chartable(t *testing.T) {
	u, s, a, d := setup()
	up := Upload{Filename: "p.csv", Content: []byte("price\n$10\n")}
	u.On("Upload", mock.Anything, "p.csv", up.Content).Return(decoded(t, priceBody, 200), nil).Once()

	res := New(u, a, d).RunCycle(context.Background(), up)

	u.AssertExpectations(t)
	assert.Equal(t, StateRendering, res.State)
	assert.Empty(t, res.Status)
	assert.Equal(t, []string{StatusUploading, ""}, d.statuses)
	require.NotNil(t, res.Series)
	assert.Equal(t, []int{1, 2, 3}, res.Series.Labels)
	assert.Equal(t, []float64{10, 0, 20}, res.Series.Values)
	assert.Equal(t, 1, s.live)
	assert.Equal(t, "price", s.last.Data.Datasets[0].Label)
	assert.Contains(t, d.summary, `"numericSummary"`)
	assert.Contains(t, d.preview, `"$10"`)
	assert.Equal(t, "req-1", res.RequestID)
	assert.NotEmpty(t, res.CycleID)
}

func TestRunCycle_NoNumericClearsChart(t *testing.T) {
	u, s, a, d := setup()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(decoded(t, priceBody, 200), nil).Once()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(decoded(t, `{"summary":{"numericSummary":null},"preview":[{"a":1}]}`, 200), nil).Once()
	o := New(u, a, d)

	require.Equal(t, StateRendering, o.RunCycle(context.Background(), Upload{Filename: "a.csv"}).State)
	res := o.RunCycle(context.Background(), Upload{Filename: "b.csv"})

	assert.Equal(t, StateCleared, res.State)
	assert.Equal(t, StatusNoNumeric, res.Status)
	assert.Nil(t, res.Series)
	assert.Equal(t, 0, s.live)
	assert.Equal(t, 1, s.created, "no series should be built for the second cycle")
	assert.Contains(t, d.preview, `"a": 1`)
}

func TestRunCycle_TransportErrorClearsChart(t *testing.T) {
	u, s, a, d := setup()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(decoded(t, priceBody, 200), nil).Once()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, &client.TransportError{Err: errors.New("connection refused")}).Once()
	o := New(u, a, d)

	o.RunCycle(context.Background(), Upload{})
	res := o.RunCycle(context.Background(), Upload{})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "Error: connection refused", res.Status)
	assert.Equal(t, 0, s.live)
	var te *client.TransportError
	assert.ErrorAs(t, res.Err, &te)
}

func TestRunCycle_ServiceErrorMessage(t *testing.T) {
	u, _, a, d := setup()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).
		Return(decoded(t, `{"error":"no file","type":"BadRequest"}`, 400), nil).Once()

	res := New(u, a, d).RunCycle(context.Background(), Upload{})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "Error: no file", res.Status)
	assert.Empty(t, d.summary, "failures do not dump summary")
	var se *client.ServiceError
	require.ErrorAs(t, res.Err, &se)
	assert.Equal(t, 400, se.StatusCode)
}

func TestRunCycle_NonOKWithoutMessage(t *testing.T) {
	u, _, a, d := setup()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(decoded(t, `{}`, 503), nil).Once()

	res := New(u, a, d).RunCycle(context.Background(), Upload{})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "Error: HTTP 503 Service Unavailable", res.Status)
}

func TestRunCycle_RenderFailure(t *testing.T) {
	u, s, a, d := setup()
	s.fail = errors.New("no canvas")
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(decoded(t, priceBody, 200), nil).Once()

	res := New(u, a, d).RunCycle(context.Background(), Upload{})

	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, "Error: render chart: no canvas", res.Status)
	assert.Equal(t, chart.StateIdle, a.State())
}

func TestRunCycle_PanicIsContained(t *testing.T) {
	u, s, a, d := setup()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(decoded(t, priceBody, 200), nil).Once()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) { panic("boom") }).Once()
	o := New(u, a, d)

	o.RunCycle(context.Background(), Upload{})
	var res Result
	require.NotPanics(t, func() { res = o.RunCycle(context.Background(), Upload{}) })
	assert.Equal(t, StateFailed, res.State)
	assert.Contains(t, res.Status, "boom")
	assert.Equal(t, 0, s.live)
}

func TestRunCycle_YAMLDump(t *testing.T) {
	u, _, a, d := setup()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(decoded(t, priceBody, 200), nil).Once()

	New(u, a, d, WithDumpFormat(pipeline.DumpYAML)).RunCycle(context.Background(), Upload{})

	assert.Contains(t, d.summary, "rows: 3")
	assert.Contains(t, d.preview, "- price:")
}

func TestRunCycle_ConcurrentCyclesLeaveOneChart(t *testing.T) {
	u, s, a, _ := setup()
	u.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(decoded(t, priceBody, 200), nil)
	o := New(u, a, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.RunCycle(context.Background(), Upload{})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, s.live)
	assert.Equal(t, 8, s.created)
}
