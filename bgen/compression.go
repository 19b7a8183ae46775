package bgen

import (
	"bytes"
	"fmt"
	"io"

	"github.com/carbocation/pfx"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// A stateless zstd decoder can be shared; DecodeAll is safe for concurrent
// use.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(err)
	}
}

// decompress expands a compressed genotype block to its stated size.
func decompress(c Compression, src []byte, decompressedSize int) ([]byte, error) {
	switch c {
	case CompressionZLIB:
		zr, err := zlib.NewReader(bytes.NewReader(src))
		if err != nil {
			return nil, pfx.Err(err)
		}
		out := make([]byte, decompressedSize)
		if _, err := io.ReadFull(zr, out); err != nil {
			zr.Close()
			return nil, pfx.Err(err)
		}
		if err := zr.Close(); err != nil {
			return nil, pfx.Err(err)
		}
		return out, nil
	case CompressionZStandard:
		out, err := zstdDecoder.DecodeAll(src, make([]byte, 0, decompressedSize))
		if err != nil {
			return nil, pfx.Err(err)
		}
		if len(out) != decompressedSize {
			return nil, pfx.Err(fmt.Errorf("zstd block decompressed to %d bytes, expected %d", len(out), decompressedSize))
		}
		return out, nil
	}

	return nil, pfx.Err(fmt.Errorf("unsupported compression choice %s", c))
}
