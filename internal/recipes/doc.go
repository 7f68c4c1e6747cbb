// Package recipes loads the remediation guidance corpus.
//
// A corpus is a directory of plain-text or markdown documents, one per
// weakness category. The category of each document comes from, in order:
// YAML front matter (category: or cwe:), a "CWE:" or "Category:" marker
// line, or the file name resolved through the CWE alias table
// (sql_injection.txt is CWE-89).
//
// The Store is loaded and embedded once at startup and is read-only
// afterwards.
package recipes
