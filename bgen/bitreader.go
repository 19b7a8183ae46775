package bgen

import (
	"io"
)

// bitReader extracts bit-packed unsigned integers from a probability data
// block. BGEN packs values least-significant-bit first within each byte,
// bytes in little-endian order.
type bitReader struct {
	reader io.ByteReader
	byte   byte
	offset byte

	errCache    error
	lastBit     bool
	resultCache uint64
}

func newBitReader(r io.ByteReader) *bitReader {
	return &bitReader{reader: r}
}

func (r *bitReader) ReadBit() (bool, error) {
	if r.offset == 8 {
		r.offset = 0
	}
	if r.offset == 0 {
		if r.byte, r.errCache = r.reader.ReadByte(); r.errCache != nil {
			return false, r.errCache
		}
	}
	r.lastBit = (r.byte & (1 << r.offset)) != 0
	r.offset++
	return r.lastBit, nil
}

// ReadUint reads the next nbits bits as an unsigned integer, low bits
// first. nbits must be 1-64.
func (r *bitReader) ReadUint(nbits int) (uint64, error) {
	r.resultCache = 0
	for i := 0; i < nbits; i++ {
		r.lastBit, r.errCache = r.ReadBit()
		if r.errCache != nil {
			return 0, r.errCache
		}
		if r.lastBit {
			r.resultCache |= 1 << uint(i)
		}
	}
	return r.resultCache, nil
}
