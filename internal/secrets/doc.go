// Package secrets detects hardcoded credentials in code snippets.
//
// The pipeline uses it twice: submitted code is redacted before it is
// written to debug logs, and a fix for CWE-798 (hardcoded credentials) is
// checked for credentials the model left in place.
//
// Findings never carry the matched text.
package secrets
