package index

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/carbocation/pfx"
)

// Fingerprint identifies the exact state of a source file at indexing time:
// its size, its modification time, and its first thousand bytes. An index
// is only valid against the exact file it was built from.
type Fingerprint struct {
	FileSize           int64
	LastWriteTime      int64
	FirstThousandBytes []byte
}

// TakeFingerprint reads the current fingerprint of a source file.
func TakeFingerprint(path string) (*Fingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, pfx.Err(err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, pfx.Err(err)
	}
	defer f.Close()

	head := make([]byte, 1000)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, pfx.Err(err)
	}

	return &Fingerprint{
		FileSize:           info.Size(),
		LastWriteTime:      info.ModTime().Unix(),
		FirstThousandBytes: head[:n],
	}, nil
}

// Matches compares the fingerprint against stored metadata, returning a
// human-readable mismatch reason when the source file has changed since the
// index was built.
func (fp *Fingerprint) Matches(meta *Metadata) (reason string, ok bool) {
	if fp.FileSize != meta.FileSize {
		return fmt.Sprintf("source size changed (%d, indexed at %d)", fp.FileSize, meta.FileSize), false
	}
	if fp.LastWriteTime != meta.LastWriteTime {
		return "source modified after indexing", false
	}
	if !bytes.Equal(fp.FirstThousandBytes, meta.FirstThousandBytes) {
		return "source content changed", false
	}
	return "", true
}
