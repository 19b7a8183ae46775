// Package bgen reads the binary BGEN probabilistic genotype container
// (v1.2, layouts 1 and 2, zlib or zstd compressed probability blocks), with
// random access through the companion .bgi SQLite index produced by the
// external bgenix tool.
package bgen

import (
	"encoding/binary"
	"fmt"
	"os"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// MagicNumber contains the value required to confirm that a file is BGEN-conformant
const MagicNumber = "bgen"

const (
	offsetVariant        = 0
	offsetHeaderLength   = 4
	offsetNumberVariants = 8
	offsetNumberSamples  = 12
	offsetMagicNumber    = 16
)

// BGEN holds the header facts of one open BGEN file.
type BGEN struct {
	FilePath         string
	File             *os.File
	NVariants        uint32
	NSamples         uint32
	FlagCompression  Compression
	FlagLayout       Layout
	FlagHasSampleIDs uint32
	SamplesStart     uint32
	VariantsStart    uint32
}

// open reads the header block at path.
func open(path string) (*BGEN, error) {
	b := &BGEN{
		FilePath: path,
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	b.File = file

	if err := populateHeader(b); err != nil {
		file.Close()
		return nil, err
	}

	return b, nil
}

func (b *BGEN) Close() error {
	return b.File.Close()
}

func populateHeader(b *BGEN) error {
	buffer := make([]byte, 4)

	if err := b.parseAtOffsetWithBuffer(offsetVariant, buffer); err != nil {
		return pfx.Err(err)
	}
	// First variant is at variant_offset + 4.
	b.VariantsStart = binary.LittleEndian.Uint32(buffer) + 4

	if err := b.parseAtOffsetWithBuffer(offsetHeaderLength, buffer); err != nil {
		return pfx.Err(err)
	}
	headerLength := int64(binary.LittleEndian.Uint32(buffer))
	b.SamplesStart = uint32(headerLength + 4)

	if err := b.parseAtOffsetWithBuffer(offsetNumberVariants, buffer); err != nil {
		return pfx.Err(err)
	}
	b.NVariants = binary.LittleEndian.Uint32(buffer)

	if err := b.parseAtOffsetWithBuffer(offsetNumberSamples, buffer); err != nil {
		return pfx.Err(err)
	}
	b.NSamples = binary.LittleEndian.Uint32(buffer)

	if err := b.parseAtOffsetWithBuffer(offsetMagicNumber, buffer); err != nil {
		return pfx.Err(err)
	}
	if MagicNumber != string(buffer) {
		return &genoparse.FormatError{
			Path:   b.FilePath,
			Record: 1,
			Msg:    fmt.Sprintf("header bytes at offset %d are %v, expected the magic number %q", offsetMagicNumber, buffer, MagicNumber),
		}
	}

	if err := b.parseAtOffsetWithBuffer(headerLength, buffer); err != nil {
		return pfx.Err(err)
	}
	flags := binary.LittleEndian.Uint32(buffer)
	b.FlagCompression = Compression(flags & 3)
	b.FlagLayout = Layout((flags & (15 << 2)) >> 2)
	b.FlagHasSampleIDs = (flags & (1 << 31)) >> 31

	return nil
}

func (b *BGEN) parseAtOffsetWithBuffer(offset int64, buffer []byte) error {
	_, err := b.File.ReadAt(buffer, offset)
	if err != nil {
		return pfx.Err(err)
	}

	return nil
}
