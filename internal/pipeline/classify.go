package pipeline

import (
	"fmt"
	"net/http"
)

// Outcome is the result of classifying one upload response.
// It is exactly one of Failure, NoNumericData or Chartable.
type Outcome interface {
	outcome()
}

// Failure means the cycle must end in an error state.
type Failure struct {
	Message string
}

// NoNumericData means the upload succeeded but there is nothing to chart.
type NoNumericData struct {
	Summary Summary
	Preview []Row
}

// Chartable carries everything needed to build the series.
type Chartable struct {
	Summary Summary
	Preview []Row
	Column  string
}

func (Failure) outcome()       {}
func (NoNumericData) outcome() {}
func (Chartable) outcome()     {}

// Classify decides what to do with a decoded response.
// Failure wins over NoNumericData, which wins over Chartable.
func Classify(resp *AnalysisResponse, httpOK bool, status int) Outcome {
	if resp == nil {
		resp = &AnalysisResponse{}
	}
	if !httpOK || resp.Error != "" {
		msg := resp.Error
		if msg == "" {
			msg = statusMessage(status)
		}
		return Failure{Message: msg}
	}
	ns := resp.Summary.NumericSummary
	if ns == nil || ns.Column == "" || len(resp.Preview) == 0 {
		return NoNumericData{Summary: resp.Summary, Preview: resp.Preview}
	}
	return Chartable{Summary: resp.Summary, Preview: resp.Preview, Column: ns.Column}
}

func statusMessage(status int) string {
	if status <= 0 {
		return "request failed"
	}
	if text := http.StatusText(status); text != "" {
		return fmt.Sprintf("HTTP %d %s", status, text)
	}
	return fmt.Sprintf("HTTP %d", status)
}
