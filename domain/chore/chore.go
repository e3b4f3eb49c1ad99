// Package chore provides the chore resource: a named household task that
// remembers when it was last done.
package chore

import "time"

// Chore is a recurring task.
type Chore struct {
	ID            string
	Name          string
	LastCompleted *time.Time
}

// ResourceID returns the chore id.
func (c *Chore) ResourceID() string { return c.ID }

// AssignID sets the chore id.
func (c *Chore) AssignID(id string) { c.ID = id }

// IsComplete reports whether the chore has ever been completed.
func (c *Chore) IsComplete() bool {
	return c.LastCompleted != nil
}

// Complete marks the chore as done at t.
func (c *Chore) Complete(t time.Time) {
	t = t.UTC()
	c.LastCompleted = &t
}
