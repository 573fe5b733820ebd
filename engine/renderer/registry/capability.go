package registry

import "github.com/spaghettifunk/continuum/engine/renderer/native"

// Handle identifies a tracked resource. Handles are never reused and stay
// the same when the native object behind them is recreated.
type Handle uint64

const InvalidHandle Handle = 0

// PoolKind decides which recreation pass touches a record on device reset.
type PoolKind uint8

const (
	// Default pool resources are lost on every reset.
	PoolDefault PoolKind = iota
	// Managed pool resources survive an in-place reset.
	PoolManaged
	// Automatic pool resources are owned by the device and survive an in-place reset.
	PoolAutomatic
)

func (p PoolKind) String() string {
	switch p {
	case PoolDefault:
		return "default"
	case PoolManaged:
		return "managed"
	case PoolAutomatic:
		return "automatic"
	default:
		return "unknown"
	}
}

// Native returns the pool to request from the native layer.
func (p PoolKind) Native() native.Pool {
	switch p {
	case PoolManaged:
		return native.PoolManaged
	case PoolAutomatic:
		return native.PoolAutomatic
	default:
		return native.PoolDefault
	}
}

// Capability is the set of lifecycle hooks a registered owner supports.
// It is computed once at registration.
type Capability uint8

const (
	CapRecreatable Capability = 1 << iota
	CapContentLost
	CapResettable
)

func (c Capability) Has(o Capability) bool { return c&o == o }

// Recreatable is implemented by owners whose native state can be saved and
// rebuilt on a new native device.
type Recreatable interface {
	// SaveDataForRecreation copies the native content into managed memory.
	SaveDataForRecreation() error
	// RecreateAndPopulateObject allocates a new native object through factory,
	// uploads the saved content and returns the new pointer. The registry
	// takes ownership of the returned reference.
	RecreateAndPopulateObject(factory native.ResourceFactory) (native.Ptr, error)
}

// ContentLoser is implemented by owners with device-scoped transient content.
type ContentLoser interface {
	SetContentLost()
}

// Resettable is implemented by effect-like owners that can drop and restore
// their device state in place instead of being recreated.
type Resettable interface {
	OnDeviceLost() error
	OnDeviceReset() error
}

func capabilitiesOf(owner interface{}) Capability {
	var c Capability
	if _, ok := owner.(Recreatable); ok {
		c |= CapRecreatable
	}
	if _, ok := owner.(ContentLoser); ok {
		c |= CapContentLost
	}
	if _, ok := owner.(Resettable); ok {
		c |= CapResettable
	}
	return c
}
