// Package store persists scan results: processed pages in a bbolt database
// and analyzed-image snapshots on the local filesystem.
package store
