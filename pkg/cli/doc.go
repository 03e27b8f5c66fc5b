// Package cli provides shared helpers for the callisto command line:
// typed command errors, shutdown signal handling, and output
// formatting for status reports.
package cli
