// Package metrics records one row per remediation request.
//
// Rows are appended to a CSV log and mirrored into Prometheus collectors.
// The Recorder also keeps an online aggregate of the rows it has written
// during the process lifetime, served as a Summary.
package metrics
