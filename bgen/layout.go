package bgen

// Layout is a versioned variant block structure outlined by the BGEN spec
type Layout uint32

// The header flag field encodes layout 1 as the value 1.
const (
	Layout1 Layout = iota + 1
	Layout2
)

func (l Layout) String() string {
	switch l {
	case Layout1:
		return "Layout1"
	case Layout2:
		return "Layout2"

	default:
		return "Illegal selection"
	}
}

// Compression indicates how (and whether) the SNP block probability is compressed
type Compression uint32

const (
	CompressionDisabled Compression = iota
	CompressionZLIB
	CompressionZStandard
)

func (c Compression) String() string {
	switch c {
	case CompressionDisabled:
		return "disabled"
	case CompressionZLIB:
		return "zlib"
	case CompressionZStandard:
		return "zstd"

	default:
		return "Illegal selection"
	}
}
