// Package ingestion orchestrates one workbook upload end to end.
//
// An Ingestor takes a source object reference whose key has the form
// label/filename.xlsx and runs the steps in order:
//
//  1. parse the label from the key
//  2. fetch the workbook
//  3. extract and classify the data worksheet
//  4. keep the rows dated on the anchor date
//  5. serialize them and write label/YYYY-MM-DD.csv to the output bucket
//  6. ask the warehouse to load that object
//
// The first failure ends the run and is returned as-is. A Dispatcher runs a
// batch of references, such as the records of one storage event, with a
// concurrency limit.
package ingestion
