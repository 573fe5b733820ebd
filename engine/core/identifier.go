package core

import "sync/atomic"

// Identifier hands out process-unique, monotonically increasing ids.
// Ids are never reused, not even after the object owning them is gone.
// Zero is never returned and can be used as "no id".
type Identifier struct {
	last atomic.Uint64
}

func (id *Identifier) AquireNewID() uint64 {
	return id.last.Add(1)
}

// Last returns the most recently issued id, 0 if none was issued.
func (id *Identifier) Last() uint64 {
	return id.last.Load()
}
