// Package ingest runs the scale ingestion loop.
//
// A Session owns the frame buffer and the stability filter. It reads raw
// bytes from a Source, splits them into records, decodes each 22-byte record,
// and for every accepted reading takes one snapshot and writes one row to the
// Sink before reading further. Counters are exported to Prometheus.
package ingest
