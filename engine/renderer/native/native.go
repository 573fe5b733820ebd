// Package native describes the narrow surface the resource lifecycle code
// needs from a graphics device implementation. Nothing in here knows about
// binary layouts or vtables; backends implement these interfaces and the
// rest of the engine only ever talks to them.
package native

// Ptr is an opaque reference to an object owned by the native layer.
// The zero value is the null pointer.
type Ptr uintptr

// Null is the null native pointer.
const Null Ptr = 0

func (p Ptr) IsNull() bool { return p == Null }

// Result is the status code returned by native calls. Zero is success and
// negative values are failures. The numbering follows VkResult so backends
// built on Vulkan can pass their codes through unchanged.
type Result int32

const (
	ResultSuccess              Result = 0
	ResultNotReady             Result = 1
	ResultErrorOutOfHostMemory Result = -1
	ResultErrorOutOfDeviceMem  Result = -2
	ResultErrorInitFailed      Result = -3
	ResultErrorDeviceLost      Result = -4
	ResultErrorTooManyObjects  Result = -10
	ResultErrorFormatNotSupp   Result = -11
	ResultErrorUnknown         Result = -13
	ResultErrorInvalidCall     Result = -1000011001
	ResultErrorOutOfDate       Result = -1000001004
)

func (r Result) Succeeded() bool { return r >= 0 }

// IsOutOfMemory reports whether the code signals a host or device allocation failure.
func (r Result) IsOutOfMemory() bool {
	return r == ResultErrorOutOfHostMemory || r == ResultErrorOutOfDeviceMem
}

// IsDeviceLost reports whether the code means the device has to be reset
// before it can be used again.
func (r Result) IsDeviceLost() bool {
	return r == ResultErrorDeviceLost || r == ResultErrorOutOfDate
}

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultNotReady:
		return "NOT_READY"
	case ResultErrorOutOfHostMemory:
		return "ERROR_OUT_OF_HOST_MEMORY"
	case ResultErrorOutOfDeviceMem:
		return "ERROR_OUT_OF_DEVICE_MEMORY"
	case ResultErrorInitFailed:
		return "ERROR_INITIALIZATION_FAILED"
	case ResultErrorDeviceLost:
		return "ERROR_DEVICE_LOST"
	case ResultErrorTooManyObjects:
		return "ERROR_TOO_MANY_OBJECTS"
	case ResultErrorFormatNotSupp:
		return "ERROR_FORMAT_NOT_SUPPORTED"
	case ResultErrorInvalidCall:
		return "ERROR_INVALID_CALL"
	case ResultErrorOutOfDate:
		return "ERROR_OUT_OF_DATE"
	default:
		return "ERROR_UNKNOWN"
	}
}

// DeviceStatus is the cooperative-level answer of the native device.
type DeviceStatus uint8

const (
	StatusNormal DeviceStatus = iota
	// The device is lost and cannot be reset yet.
	StatusLost
	// The device is lost but can be reset now.
	StatusNeedsReset
)

func (s DeviceStatus) String() string {
	switch s {
	case StatusNormal:
		return "normal"
	case StatusLost:
		return "lost"
	case StatusNeedsReset:
		return "needs-reset"
	default:
		return "unknown"
	}
}

type ResourceKind uint8

const (
	KindTexture ResourceKind = iota
	KindVertexBuffer
	KindIndexBuffer
	KindRenderTarget
	KindDepthStencilSurface
	KindEffect
	KindQuery
)

func (k ResourceKind) String() string {
	switch k {
	case KindTexture:
		return "texture"
	case KindVertexBuffer:
		return "vertex-buffer"
	case KindIndexBuffer:
		return "index-buffer"
	case KindRenderTarget:
		return "render-target"
	case KindDepthStencilSurface:
		return "depth-stencil-surface"
	case KindEffect:
		return "effect"
	case KindQuery:
		return "query"
	default:
		return "unknown"
	}
}

// Pool is the residency class requested from the native layer.
type Pool uint8

const (
	PoolDefault Pool = iota
	PoolManaged
	PoolAutomatic
)

// ResourceParams carries everything a backend needs to allocate a resource.
type ResourceParams struct {
	Kind    ResourceKind
	Pool    Pool
	Size    uint32
	Width   uint32
	Height  uint32
	Levels  uint32
	Format  Format
	Dynamic bool
	// Source is set when the resource is cloned from another native object.
	Source Ptr
}

// ResourceFactory creates and releases native resources.
type ResourceFactory interface {
	CreateResource(kind ResourceKind, params ResourceParams) (Ptr, Result)
	// ReleaseResource drops one native reference and returns how many remain.
	ReleaseResource(p Ptr) uint32
}

// StatusQuerier exposes the lost/reset protocol of the native device.
type StatusQuerier interface {
	QueryDeviceStatus() DeviceStatus
}

// ContentAccess moves resource contents between managed memory and the
// native object.
type ContentAccess interface {
	WriteContent(p Ptr, offset uint32, data []byte) Result
	ReadContent(p Ptr, offset uint32, dst []byte) Result
}

// DeclarationFactory builds combined vertex declarations.
type DeclarationFactory interface {
	CreateCombinedDeclaration(elements []VertexElement) (Ptr, Result)
}

// DeviceType selects the kind of native device.
type DeviceType uint8

const (
	DeviceTypeHardware DeviceType = iota
	DeviceTypeReference
	DeviceTypeSoftware
	DeviceTypeNullReference
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeHardware:
		return "hardware"
	case DeviceTypeReference:
		return "reference"
	case DeviceTypeSoftware:
		return "software"
	case DeviceTypeNullReference:
		return "null-reference"
	default:
		return "unknown"
	}
}

// ParseDeviceType is the inverse of DeviceType.String.
func ParseDeviceType(s string) (DeviceType, bool) {
	for t := DeviceTypeHardware; t <= DeviceTypeNullReference; t++ {
		if t.String() == s {
			return t, true
		}
	}
	return DeviceTypeHardware, false
}

// PresentationParameters describe the back buffer the device renders into.
type PresentationParameters struct {
	BackBufferWidth    uint32
	BackBufferHeight   uint32
	BackBufferFormat   Format
	DepthStencilFormat Format
	MultiSampleCount   uint32
	Windowed           bool
	VSync              bool
}

// SameGeometry reports whether two parameter sets describe the same back buffer size.
func (p PresentationParameters) SameGeometry(o PresentationParameters) bool {
	return p.BackBufferWidth == o.BackBufferWidth && p.BackBufferHeight == o.BackBufferHeight
}

type Viewport struct {
	X, Y          uint32
	Width, Height uint32
	MinDepth      float32
	MaxDepth      float32
}

// Device is the full capability surface of one native device instance.
type Device interface {
	ResourceFactory
	ContentAccess
	StatusQuerier
	DeclarationFactory

	Capabilities() Capabilities
	// Reconfigure resets the device in place with new presentation parameters.
	Reconfigure(params PresentationParameters) Result
	SetRenderStates(commands []StateCommand) Result
	SetSamplerStates(slot int, commands []StateCommand) Result
	SetVertexDeclaration(decl Ptr) Result
	SetViewport(vp Viewport) Result
	// SetRenderTarget binds a surface; Null at index 0 restores the back buffer.
	SetRenderTarget(index int, surface Ptr) Result
	Present() Result
	Release()
}

// DeviceFactory creates native devices for an adapter ordinal.
type DeviceFactory interface {
	CreateDevice(adapter int, deviceType DeviceType, params PresentationParameters) (Device, Result)
}
