// Package http exposes the ingestion pipeline over HTTP.
//
// Handlers are thin: they decode the request, hand it to the ingestion
// layer and render the outcome. Failures are rendered as RFC 7807 problem
// details through errors.ErrorHandler.
//
// Routes:
//
//	POST /v1/events/s3   ingest every ObjectCreated record of an S3 event notification
//	GET  /healthz        liveness and build information
//	GET  /metrics        Prometheus scrape endpoint
//
// Middleware order is RequestID, RealIP, OTel, error logging and recovery,
// security headers, rate limiting, then the body size limit on the events
// route.
package http
