// Package engine advances query executions through their lifecycle.
// Each started execution gets its own goroutine that steps the state
// QUEUED -> RUNNING -> SUCCEEDED once per tick, publishing every step to the
// shared state map, fanning it out to event subscribers and journaling it.
package engine
