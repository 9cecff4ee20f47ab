// Package state holds the in-memory view of query execution states.
//
// A Map separates readers from the single serialized write path. Writes are
// buffered until Publish, which swaps in a new immutable snapshot; readers
// load the current snapshot with one atomic operation and never take a lock.
package state
