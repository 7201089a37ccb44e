// Package app is the composition root shared by the sheetload binaries.
//
// New loads nothing itself: callers pass the configuration and logger, and
// may override the object stores or the warehouse loader. Everything else
// is built from the configuration in this order:
//
//	1. OpenTelemetry providers and the sheetload instruments
//	2. the AWS configuration, when an S3 store or the Redshift Data loader is needed
//	3. the object stores and the warehouse loader
//	4. the Ingestor and the Dispatcher
//
// The function entry point calls HandleS3Event; the HTTP server calls Run,
// which serves Router until SIGINT or SIGTERM and then shuts down.
package app
