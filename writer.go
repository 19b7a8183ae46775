package genoparse

// Writer is the dual of Source: it accepts rows in the unified model and
// serializes them into one concrete output format. A Writer is opened with
// the sample order the output will carry; every row handed to WriteVariant
// must already be aligned to that order.
//
// Writers that target a format without a probabilistic representation
// collapse Probs rows to hard calls by argmax. The collapse is deterministic
// and documented per target format; it never branches on data shape at
// runtime. Writers must support streaming sinks without seeking, and a
// writer that fails partway leaves either complete prior records or a
// detectably truncated artifact, never a record split mid-write.
type Writer interface {
	// Samples returns the sample order the writer was opened with.
	Samples() *SampleSet

	// WriteVariant appends one row.
	WriteVariant(g *Genotypes) error

	// Close finalizes trailing structures and releases the handle.
	Close() error
}
