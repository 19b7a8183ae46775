package bgen

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/carbocation/pfx"

	"github.com/genoparse/genoparse"
)

// VariantData is one fully parsed variant block: the identifier fields plus
// the decoded probability data.
type VariantData struct {
	ID            string
	RSID          string
	Chromosome    string
	Position      uint32
	NAlleles      uint16
	Alleles       []genoparse.Allele
	Probabilities *Probability
}

// VariantReader walks the variant blocks of a BGEN file in storage order.
type VariantReader struct {
	VariantsSeen  uint32
	b             *BGEN
	currentOffset int64
	err           error

	// Cached values
	buffer []byte
}

func (b *BGEN) NewVariantReader() *VariantReader {
	vr := &VariantReader{
		currentOffset: int64(b.VariantsStart),
		b:             b,
	}

	return vr
}

func (vr *VariantReader) Error() error {
	return vr.err
}

// Read parses the next variant block, or returns nil at end of file or on
// error.
func (vr *VariantReader) Read() *VariantData {
	if vr.err != nil || vr.VariantsSeen >= vr.b.NVariants {
		return nil
	}

	v, newOffset, err := vr.parseVariantAtOffset(vr.currentOffset)
	if err != nil {
		if err == io.EOF {
			return nil
		}
		vr.err = err
		return nil
	}

	vr.VariantsSeen++
	vr.currentOffset = newOffset

	return v
}

// ReadAt parses the variant block at a byte offset obtained from a .bgi
// index, without advancing the sequential read position.
func (vr *VariantReader) ReadAt(offset int64) (*VariantData, error) {
	v, _, err := vr.parseVariantAtOffset(offset)
	return v, err
}

// parseVariantAtOffset does not mutate the reader's sequential position.
func (vr *VariantReader) parseVariantAtOffset(offset int64) (*VariantData, int64, error) {
	v := &VariantData{}
	ordinal := int(vr.VariantsSeen) + 1

	var err error

	// Layout1 blocks open with a redundant sample count that Layout2
	// dropped.
	if vr.b.FlagLayout == Layout1 {
		if err = vr.readNBytesAtOffset(4, offset); err != nil {
			return nil, 0, err
		}
		offset += 4
		if n := binary.LittleEndian.Uint32(vr.buffer[:4]); n != vr.b.NSamples {
			return nil, 0, &genoparse.FormatError{
				Path:   vr.b.FilePath,
				Record: ordinal,
				Msg:    fmt.Sprintf("variant block covers %d samples, header says %d", n, vr.b.NSamples),
			}
		}
	}

	// ID:
	if err = vr.readNBytesAtOffset(2, offset); err != nil {
		return nil, 0, err
	}
	offset += 2
	stringSize := int(binary.LittleEndian.Uint16(vr.buffer[:2]))
	if err = vr.readNBytesAtOffset(stringSize, offset); err != nil {
		return nil, 0, err
	}
	v.ID = string(vr.buffer[:stringSize])
	offset += int64(stringSize)

	// RSID
	if err = vr.readNBytesAtOffset(2, offset); err != nil {
		return nil, 0, err
	}
	offset += 2
	stringSize = int(binary.LittleEndian.Uint16(vr.buffer[:2]))
	if err = vr.readNBytesAtOffset(stringSize, offset); err != nil {
		return nil, 0, err
	}
	v.RSID = string(vr.buffer[:stringSize])
	offset += int64(stringSize)

	// Chrom
	if err = vr.readNBytesAtOffset(2, offset); err != nil {
		return nil, 0, err
	}
	offset += 2
	stringSize = int(binary.LittleEndian.Uint16(vr.buffer[:2]))
	if err = vr.readNBytesAtOffset(stringSize, offset); err != nil {
		return nil, 0, err
	}
	v.Chromosome = string(vr.buffer[:stringSize])
	offset += int64(stringSize)

	// Position
	if err = vr.readNBytesAtOffset(4, offset); err != nil {
		return nil, 0, err
	}
	offset += 4
	v.Position = binary.LittleEndian.Uint32(vr.buffer[:4])

	// NAlleles
	if vr.b.FlagLayout == Layout1 {
		// Assumed to be 2 in Layout1
		v.NAlleles = 2
	} else if vr.b.FlagLayout == Layout2 {
		if err = vr.readNBytesAtOffset(2, offset); err != nil {
			return nil, 0, err
		}
		offset += 2
		v.NAlleles = binary.LittleEndian.Uint16(vr.buffer[:2])
	}

	// Allele slice
	var alleleLength int
	for i := uint16(0); i < v.NAlleles; i++ {
		if err = vr.readNBytesAtOffset(4, offset); err != nil {
			return nil, 0, err
		}
		offset += 4
		alleleLength = int(binary.LittleEndian.Uint32(vr.buffer[:4]))

		if err = vr.readNBytesAtOffset(alleleLength, offset); err != nil {
			return nil, 0, err
		}
		offset += int64(alleleLength)
		v.Alleles = append(v.Alleles, genoparse.Allele(string(vr.buffer[:alleleLength])))
	}

	// Genotype data block. Layout and compression determine how to find
	// its bounds and how to unpack it.
	var raw []byte
	switch vr.b.FlagLayout {
	case Layout1:
		raw, offset, err = vr.readLayout1Block(offset)
	case Layout2:
		raw, offset, err = vr.readLayout2Block(offset)
	default:
		return nil, 0, &genoparse.FormatError{
			Path:   vr.b.FilePath,
			Record: ordinal,
			Msg:    fmt.Sprintf("unsupported layout flag %d", vr.b.FlagLayout),
		}
	}
	if err != nil {
		return nil, 0, err
	}

	v.Probabilities, err = parseProbabilities(vr.b, raw, ordinal)
	if err != nil {
		return nil, 0, err
	}
	if int(v.Probabilities.NAlleles) != len(v.Alleles) {
		return nil, 0, &genoparse.FormatError{
			Path:   vr.b.FilePath,
			Record: ordinal,
			Msg:    fmt.Sprintf("probability block reports %d alleles, identifier block has %d", v.Probabilities.NAlleles, len(v.Alleles)),
		}
	}

	return v, offset, nil
}

// readLayout1Block returns the decompressed 6N-byte probability block.
func (vr *VariantReader) readLayout1Block(offset int64) ([]byte, int64, error) {
	if vr.b.FlagCompression == CompressionDisabled {
		// From the spec: "If CompressedSNPBlocks=0 this field is omitted
		// and the length of the uncompressed data is C=6N."
		size := int(6 * vr.b.NSamples)
		if err := vr.readNBytesAtOffset(size, offset); err != nil {
			return nil, 0, err
		}
		offset += int64(size)

		out := make([]byte, size)
		copy(out, vr.buffer[:size])
		return out, offset, nil
	}

	if err := vr.readNBytesAtOffset(4, offset); err != nil {
		return nil, 0, err
	}
	offset += 4
	genoBlockLength := int(binary.LittleEndian.Uint32(vr.buffer[:4]))

	if err := vr.readNBytesAtOffset(genoBlockLength, offset); err != nil {
		return nil, 0, err
	}
	offset += int64(genoBlockLength)

	out, err := decompress(vr.b.FlagCompression, vr.buffer[:genoBlockLength], int(6*vr.b.NSamples))
	if err != nil {
		return nil, 0, pfx.Err(err)
	}
	return out, offset, nil
}

// readLayout2Block returns the decompressed probability block for layout 2.
func (vr *VariantReader) readLayout2Block(offset int64) ([]byte, int64, error) {
	// The genotype data block for Layout2 is guaranteed to start with a 4
	// byte chunk that indicates how much data is left for this block
	// (skipping ahead by this much will bring you to the next variant).
	if err := vr.readNBytesAtOffset(4, offset); err != nil {
		return nil, 0, err
	}
	offset += 4
	blockLength := int(binary.LittleEndian.Uint32(vr.buffer[:4]))

	if vr.b.FlagCompression == CompressionDisabled {
		// If compression is disabled, there is no second length chunk;
		// the block is stored raw.
		if err := vr.readNBytesAtOffset(blockLength, offset); err != nil {
			return nil, 0, err
		}
		offset += int64(blockLength)

		out := make([]byte, blockLength)
		copy(out, vr.buffer[:blockLength])
		return out, offset, nil
	}

	// With compression enabled, a second 4 byte chunk indicates the size
	// of the data after decompression, and the compressed payload is the
	// remaining blockLength-4 bytes.
	if err := vr.readNBytesAtOffset(4, offset); err != nil {
		return nil, 0, err
	}
	offset += 4
	decompressedLength := int(binary.LittleEndian.Uint32(vr.buffer[:4]))

	compressedLength := blockLength - 4
	if err := vr.readNBytesAtOffset(compressedLength, offset); err != nil {
		return nil, 0, err
	}
	offset += int64(compressedLength)

	out, err := decompress(vr.b.FlagCompression, vr.buffer[:compressedLength], decompressedLength)
	if err != nil {
		return nil, 0, pfx.Err(err)
	}
	return out, offset, nil
}

func (vr *VariantReader) readNBytesAtOffset(N int, offset int64) error {
	if vr.buffer == nil || len(vr.buffer) < N {
		vr.buffer = make([]byte, N)
	}

	_, err := vr.b.File.ReadAt(vr.buffer[:N], offset)
	return err
}
