// Package storage provides the object stores the ingestion pipeline reads
// workbooks from and writes CSV output to.
//
// S3Store talks to S3 through a shared HTTP client that caches DNS answers
// and limits parallel lookups. FileStore maps keys to files for local runs,
// and MemoryStore backs tests and the CLI.
package storage
