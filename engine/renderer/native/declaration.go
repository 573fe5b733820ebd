package native

// DeclType is the wire data type of one vertex element.
type DeclType uint8

const (
	DeclTypeFloat1 DeclType = iota
	DeclTypeFloat2
	DeclTypeFloat3
	DeclTypeFloat4
	DeclTypeColor
	DeclTypeUByte4
	DeclTypeShort2
	DeclTypeShort4
	DeclTypeUByte4N
	DeclTypeShort2N
	DeclTypeShort4N
	DeclTypeUShort2N
	DeclTypeUShort4N
	DeclTypeUDec3
	DeclTypeDec3N
	DeclTypeFloat16x2
	DeclTypeFloat16x4
	DeclTypeUnused
)

// Size returns the byte size of the type, 0 for DeclTypeUnused.
func (t DeclType) Size() uint16 {
	switch t {
	case DeclTypeFloat1, DeclTypeColor, DeclTypeUByte4, DeclTypeShort2, DeclTypeUByte4N,
		DeclTypeShort2N, DeclTypeUShort2N, DeclTypeUDec3, DeclTypeDec3N, DeclTypeFloat16x2:
		return 4
	case DeclTypeFloat2, DeclTypeShort4, DeclTypeShort4N, DeclTypeUShort4N, DeclTypeFloat16x4:
		return 8
	case DeclTypeFloat3:
		return 12
	case DeclTypeFloat4:
		return 16
	default:
		return 0
	}
}

type DeclMethod uint8

const (
	DeclMethodDefault DeclMethod = iota
	DeclMethodPartialU
	DeclMethodPartialV
	DeclMethodCrossUV
	DeclMethodUV
	DeclMethodLookup
	DeclMethodLookupPresampled
)

// DeclUsage is the semantic an element feeds.
type DeclUsage uint8

const (
	DeclUsagePosition DeclUsage = iota
	DeclUsageBlendWeight
	DeclUsageBlendIndices
	DeclUsageNormal
	DeclUsagePointSize
	DeclUsageTexCoord
	DeclUsageTangent
	DeclUsageBinormal
	DeclUsageTessFactor
	DeclUsagePositionT
	DeclUsageColor
	DeclUsageFog
	DeclUsageDepth
	DeclUsageSample
)

// VertexElement is one entry of a native vertex declaration.
type VertexElement struct {
	Stream     uint16
	Offset     uint16
	Type       DeclType
	Method     DeclMethod
	Usage      DeclUsage
	UsageIndex uint8
}

// DeclEnd terminates every declaration handed to CreateCombinedDeclaration.
var DeclEnd = VertexElement{Stream: 0xFF, Offset: 0, Type: DeclTypeUnused}

func (e VertexElement) IsEnd() bool { return e == DeclEnd }
