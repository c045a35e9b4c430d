// Package catalog holds the record types, artifact codec, error taxonomy and
// collaborator interfaces shared by the fetch and load stages of the Global
// Forest Watch dataset catalog pipeline.
package catalog
