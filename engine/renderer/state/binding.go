// Package state holds the bind-once state objects: they can be configured
// freely until they are applied to a device for the first time, and are
// frozen from then on.
package state

import (
	"sync"

	"github.com/google/uuid"

	"github.com/spaghettifunk/continuum/engine/core"
	"github.com/spaghettifunk/continuum/engine/renderer/native"
)

// Target is what a state object needs from the device it is applied to.
type Target interface {
	// ID identifies the native device instance. It changes when the native
	// device is recreated, which forces a new translation.
	ID() uuid.UUID
	Capabilities() native.Capabilities
	SetRenderStates(commands []native.StateCommand) error
	SetSamplerStates(slot int, commands []native.StateCommand) error
}

// binding implements the bind-once contract shared by every state object.
type binding struct {
	mu       sync.Mutex
	kind     string
	bound    bool
	device   uuid.UUID
	commands []native.StateCommand
}

// IsBound reports whether the object was applied at least once or is a preset.
func (b *binding) IsBound() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bound
}

// mutate runs set only while the object is still unbound.
func (b *binding) mutate(field string, set func()) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bound {
		return core.InvalidOperationf("cannot change %s of a bound %s", field, b.kind)
	}
	set()
	return nil
}

// read runs get under the object lock.
func (b *binding) read(get func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	get()
}

// commandsFor returns the native commands for target, translating them the
// first time the object meets this device instance. translate runs with the
// lock held and must validate against caps before producing anything.
func (b *binding) commandsFor(target Target, translate func(caps native.Capabilities) ([]native.StateCommand, error)) ([]native.StateCommand, error) {
	if target == nil {
		return nil, core.Argumentf("apply %s: device is nil", b.kind)
	}
	id := target.ID()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.commands == nil || b.device != id {
		cmds, err := translate(target.Capabilities())
		if err != nil {
			return nil, err
		}
		b.commands = cmds
		b.device = id
		b.bound = true
		core.LogDebug("%s translated for device %s (%d commands)", b.kind, id, len(cmds))
	}
	out := make([]native.StateCommand, len(b.commands))
	copy(out, b.commands)
	return out, nil
}
