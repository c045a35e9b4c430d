// Package catalog defines core types shared across subsystems.
package catalog

import (
	"net/http"
	"time"
)

// CoverageUnknown is substituted when an upstream entry carries no geographic coverage.
const CoverageUnknown = "N/A"

// Response is the envelope returned by the catalog API.
type Response struct {
	Data *[]Entry `json:"data"`
}

// Entry is a single dataset as described by the catalog API.
// Only the fields the pipeline reads are modeled.
type Entry struct {
	Dataset  *string   `json:"dataset"`
	Metadata *Metadata `json:"metadata"`
}

// Metadata carries the optional descriptive fields of an Entry.
type Metadata struct {
	GeographicCoverage *string `json:"geographic_coverage"`
}

// Record is one normalized element of the artifact handed from the fetch stage to the load stage.
type Record struct {
	DatasetName        string `json:"dataset_name"`
	GeographicCoverage string `json:"geographic_coverage"`
}

// Valid reports whether both fields are non-empty and the record may be upserted.
func (r Record) Valid() bool {
	return r.DatasetName != "" && r.GeographicCoverage != ""
}

// Artifact is the ordered record list persisted between stages.
type Artifact []Record

// FetchRequest describes a single catalog download.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResponse captures the raw catalog response.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ArtifactLocation identifies where the artifact lives in the object store.
type ArtifactLocation struct {
	Bucket      string
	Object      string
	ContentType string
}

// ArtifactNotice is published after a new artifact has been written.
type ArtifactNotice struct {
	RunID     string    `json:"run_id"`
	URI       string    `json:"uri"`
	Bucket    string    `json:"bucket"`
	Object    string    `json:"object"`
	Records   int       `json:"records"`
	SHA256    string    `json:"sha256"`
	WrittenAt time.Time `json:"written_at"`
}
