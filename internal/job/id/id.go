// Package id provides unique identifier generation for jobs.
package id

import "github.com/google/uuid"

// Prefix starts every job ID.
const Prefix = "job-"

// Generate creates a new unique job ID.
// Example: job-6f1c2a9e-3b4d-4c8e-9a51-0d2e7f3b1c44
func Generate() string {
	return Prefix + uuid.NewString()
}

// Valid reports whether s looks like an ID returned by Generate.
func Valid(s string) bool {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return false
	}
	_, err := uuid.Parse(s[len(Prefix):])
	return err == nil
}
