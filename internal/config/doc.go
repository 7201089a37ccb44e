// Package config loads the sheetload configuration.
//
// # Configuration Sources
//
// Values are resolved in the following order, later sources winning:
//
//	1. Default()
//	2. YAML file: $SHEETLOAD_CONFIG_FILE, sheetload.yaml or configs/sheetload.yaml
//	3. Environment variables
//
// # Environment Variables
//
// Every variable is namespaced by SHEETLOAD and the section name:
//
//	SHEETLOAD_INGESTION_SOURCE_BUCKET=raw-uploads
//	SHEETLOAD_INGESTION_OUTPUT_BUCKET=csv-staging
//	SHEETLOAD_INGESTION_TARGET_TABLE=public.test_table
//	SHEETLOAD_INGESTION_CREDENTIALS_REF=arn:aws:iam::123456789012:role/redshift-copy
//	SHEETLOAD_WAREHOUSE_BACKEND=redshift-data
//	SHEETLOAD_WAREHOUSE_CLUSTER_ID=analytics
//	SHEETLOAD_AWS_REGION=eu-west-1
//	SHEETLOAD_LOGGING_LEVEL=debug
//
// # Validation
//
// Validate runs go-playground/validator over the struct tags, including the
// custom sqlident tag for the target table, and then the cross-section rules
// that depend on the selected warehouse backend. Failures are returned as
// CONFIG AppErrors.
package config
