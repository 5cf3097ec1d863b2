// Package observability records pipeline runs in an append-only JSON Lines
// event log and derives run metrics and alerts from it on demand. The log
// lives outside export directories so exports stay byte-identical across
// reruns.
package observability
