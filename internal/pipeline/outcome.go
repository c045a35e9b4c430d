package pipeline

import (
	"net/http"
	"time"

	"github.com/JakeFAU/gfw-catalog-pipeline/internal/catalog"
	"github.com/JakeFAU/gfw-catalog-pipeline/internal/id/uuid"
)

// Stage names a pipeline stage in logs, metrics and outcomes.
type Stage string

// Pipeline stages.
const (
	StageFetch Stage = "fetch"
	StageLoad  Stage = "load"
)

// Outcome is the result of one stage run.
type Outcome struct {
	Stage    Stage
	RunID    string
	Status   int
	Message  string
	Location string
	Records  int
	Upserted int
	Skipped  int
	Duration time.Duration
	Err      error
}

// OK reports whether the run succeeded.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// Describe renders err as the caller-facing failure message for its kind.
func Describe(err error) string {
	switch catalog.KindOf(err) {
	case catalog.KindTransport:
		return "Error fetching data: " + err.Error()
	case catalog.KindParse:
		return "Error decoding JSON: " + err.Error()
	case catalog.KindStorage:
		return "Error accessing storage: " + err.Error()
	case catalog.KindDatabase:
		return "Error loading datasets: " + err.Error()
	case catalog.KindInternal:
		return "An unexpected error occurred: " + err.Error()
	default:
		return "An unexpected error occurred: " + err.Error()
	}
}

func failed(stage Stage, runID string, err error) Outcome {
	return Outcome{
		Stage:   stage,
		RunID:   runID,
		Status:  http.StatusInternalServerError,
		Message: Describe(err),
		Err:     err,
	}
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return string(catalog.KindOf(err))
}

func newRunID() string {
	return uuid.NewID()
}
