// Package vectorstore holds the recipe vector index and its on-disk catalog.
//
// FlatIndex is an exact nearest-neighbour index over a fixed set of vectors
// using squared Euclidean distance. It is built once at startup and is
// read-only afterwards, so concurrent queries need no locking.
//
// Catalog persists recipe embeddings in a chromem-go database keyed by a
// content hash, so a restart with an unchanged corpus skips re-embedding.
package vectorstore
