// Package validate holds the input checks applied to credentials and profile
// data before anything is sent to the identity provider or persisted.
//
// Every validator is a pure function returning a Result. Validators never
// mutate their input and never panic; a failing Result carries a single
// human-readable message describing the first rule that was violated.
package validate
