// Package ingest implements the contact ingestion pipeline: CSV format
// sniffing, schema mapping from arbitrary export headers onto the canonical
// contact record, and per-row reconciliation into the contact store.
//
// The pipeline is built for hostile input. Audience-management exports show
// up with every delimiter under the sun, renamed columns, BOMs, blank lines
// and ragged rows; a single bad row must never take down a run.
package ingest
