// Package pipeline implements the two independently triggered stages of the
// dataset catalog pipeline.
//
// The Fetcher downloads the catalog, normalizes every entry and overwrites a
// single JSON artifact in object storage. The Loader reads that artifact and
// upserts each record into Postgres inside one transaction. The stages share
// no in-process state; the artifact is their only handoff.
//
// Both stages return an Outcome instead of an error so the HTTP and CLI
// surfaces report the same status and message. Failures are classified with
// catalog.Kind and every kind maps to a distinct message prefix.
package pipeline
