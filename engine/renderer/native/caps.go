package native

// Profile is the capability tier of a device.
type Profile uint8

const (
	// ProfileReach is the restricted tier.
	ProfileReach Profile = iota
	ProfileHiDef
)

func (p Profile) String() string {
	switch p {
	case ProfileReach:
		return "reach"
	case ProfileHiDef:
		return "hidef"
	default:
		return "unknown"
	}
}

func ParseProfile(s string) (Profile, bool) {
	switch s {
	case "reach":
		return ProfileReach, true
	case "hidef":
		return ProfileHiDef, true
	}
	return ProfileReach, false
}

// Format is the native surface format identifier.
type Format uint32

const (
	FormatUnknown Format = iota
	FormatA8R8G8B8
	FormatX8R8G8B8
	FormatR5G6B5
	FormatA16B16G16R16F
	FormatA32B32G32R32F
	FormatD24S8
	FormatD16
	FormatDXT1
	FormatDXT5
)

// Capabilities is the profile a device reports. Both the layout cache and
// state object validation consult it before issuing any native call.
type Capabilities struct {
	Profile            Profile
	MaxStreams         int
	MaxRenderTargets   int
	MaxSamplers        int
	MaxAnisotropy      uint32
	SeparateAlphaBlend bool
	BlendFactor        bool
	TwoSidedStencil    bool
	NonPowerOfTwo      bool
	SupportedFormats   []Format
}

// SupportsFormat reports whether f is in the supported list.
func (c Capabilities) SupportsFormat(f Format) bool {
	for _, s := range c.SupportedFormats {
		if s == f {
			return true
		}
	}
	return false
}

// ReachCapabilities is the restricted profile.
func ReachCapabilities() Capabilities {
	return Capabilities{
		Profile:          ProfileReach,
		MaxStreams:       16,
		MaxRenderTargets: 1,
		MaxSamplers:      16,
		MaxAnisotropy:    2,
		SupportedFormats: []Format{FormatA8R8G8B8, FormatX8R8G8B8, FormatR5G6B5, FormatD24S8, FormatD16, FormatDXT1, FormatDXT5},
	}
}

// HiDefCapabilities is the full profile.
func HiDefCapabilities() Capabilities {
	return Capabilities{
		Profile:            ProfileHiDef,
		MaxStreams:         16,
		MaxRenderTargets:   4,
		MaxSamplers:        16,
		MaxAnisotropy:      16,
		SeparateAlphaBlend: true,
		BlendFactor:        true,
		TwoSidedStencil:    true,
		NonPowerOfTwo:      true,
		SupportedFormats: []Format{
			FormatA8R8G8B8, FormatX8R8G8B8, FormatR5G6B5, FormatA16B16G16R16F,
			FormatA32B32G32R32F, FormatD24S8, FormatD16, FormatDXT1, FormatDXT5,
		},
	}
}
