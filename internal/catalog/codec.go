package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"unicode/utf8"
)

// DecodeResponse parses a catalog API body and returns its entries in source order.
func DecodeResponse(body []byte) ([]Entry, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, ParseError("decode catalog response", err)
	}
	if resp.Data == nil {
		return nil, ParseError("decode catalog response", ErrMissingData)
	}
	return *resp.Data, nil
}

// Normalize maps catalog entries to records, preserving order.
// An entry without a dataset name or metadata object fails the whole batch.
func Normalize(entries []Entry) (Artifact, error) {
	out := make(Artifact, 0, len(entries))
	for i, entry := range entries {
		if entry.Dataset == nil {
			return nil, ParseError("normalize catalog", fmt.Errorf("entry %d: %w", i, ErrMissingDataset))
		}
		if entry.Metadata == nil {
			return nil, ParseError("normalize catalog", fmt.Errorf("entry %d (%s): %w", i, *entry.Dataset, ErrMissingMetadata))
		}
		// Absent and null coverage both map to the sentinel, so the loader keeps the row.
		coverage := CoverageUnknown
		if entry.Metadata.GeographicCoverage != nil {
			coverage = *entry.Metadata.GeographicCoverage
		}
		out = append(out, Record{
			DatasetName:        *entry.Dataset,
			GeographicCoverage: coverage,
		})
	}
	return out, nil
}

// EncodeArtifact serializes records as a JSON array. A nil artifact encodes as [].
func EncodeArtifact(a Artifact) ([]byte, error) {
	if a == nil {
		a = Artifact{}
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return data, nil
}

// DecodeArtifact parses a stored artifact.
func DecodeArtifact(data []byte) (Artifact, error) {
	if !utf8.Valid(data) {
		return nil, ParseError("decode artifact", ErrInvalidUTF8)
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, ParseError("decode artifact", ErrArtifactNotArray)
	}
	var a Artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, ParseError("decode artifact", err)
	}
	return a, nil
}
