// Package integration holds end-to-end tests that run extraction, index
// building, sharding and verification together.
package integration
