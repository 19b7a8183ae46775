package genoparse

// GenotypeReader is a single-pass iterator over the rows of a Source, in the
// source's native storage order (not guaranteed globally sorted for every
// format). The protocol follows the usual reader loop:
//
//	rdr := src.Reader()
//	for g := rdr.Read(); g != nil; g = rdr.Read() {
//		...
//	}
//	if err := rdr.Err(); err != nil { ... }
//
// Read returns nil at end of input or on error; Err distinguishes the two.
// A reader is consumed once. Obtaining a fresh reader from the Source
// rewinds for seekable sources; stream-backed sources cannot rewind.
type GenotypeReader interface {
	Read() *Genotypes
	Err() error
}

// Source is the contract every concrete format driver implements. A Source
// owns exactly one open file (or file-group) and, optionally, one loaded
// index; Close releases the underlying handles and must be called on every
// exit path, including when iteration is abandoned early.
type Source interface {
	// Samples returns the ordered sample identifiers, stable for the
	// Source's lifetime.
	Samples() *SampleSet

	// NVariants returns the variant count, or -1 when the format cannot
	// know it without a full scan.
	NVariants() int

	// Reader starts sequential iteration from the first variant.
	Reader() GenotypeReader

	// VariantsByName returns every row whose marker name matches. An
	// absent name yields an empty slice, not an error. Formats without
	// fast native lookup fail with IndexRequiredError when no index is
	// loaded.
	VariantsByName(name string) ([]*Genotypes, error)

	// VariantsInRegion returns every row on chrom with start <= pos <= end,
	// under the same indexing requirement as VariantsByName.
	VariantsInRegion(chrom string, start, end uint32) ([]*Genotypes, error)

	// Orientation reports the strand convention alleles are stored in.
	Orientation() Orientation

	Close() error
}
