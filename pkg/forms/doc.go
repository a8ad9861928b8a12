// Package forms declares the three forms formflow serves: event registration,
// job application and survey. Field constraints, conditional variants and
// storage keys live in the embedded OpenAPI catalogue (catalog.yaml) under the
// `x-formflow` extension; this package pins the closed set of field
// identifiers each form may use and turns accepted values into typed records.
package forms
