package genoparse

import "fmt"

// FormatError reports a malformed record in a source file. Record is the
// 1-based ordinal of the offending record in the file's native order. No
// automatic repair is attempted; genotype data correctness cannot be
// guessed.
type FormatError struct {
	Path   string
	Record int
	Msg    string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: record %d: %s", e.Path, e.Record, e.Msg)
}

// IndexRequiredError reports that random access was requested on a format
// that needs a persisted index for the operation, and none was available.
type IndexRequiredError struct {
	Path string
	Op   string
}

func (e *IndexRequiredError) Error() string {
	return fmt.Sprintf("%s: %s requires an index; build one first", e.Path, e.Op)
}

// StaleIndexError reports that an index does not belong to the source file
// it was opened against, either because the source was modified after
// indexing or because the index was built in a different mode. Using such an
// index would silently return wrong genotypes, so it is rejected outright.
type StaleIndexError struct {
	IndexPath string
	Reason    string
}

func (e *StaleIndexError) Error() string {
	return fmt.Sprintf("%s: stale index: %s", e.IndexPath, e.Reason)
}

// UnknownSampleError reports a requested sample identifier that is absent
// from the source's sample set. This is fatal for the whole extraction:
// silently dropping a requested sample would mislead downstream sample-count
// assumptions.
type UnknownSampleError struct {
	ID string
}

func (e *UnknownSampleError) Error() string {
	return fmt.Sprintf("sample %q is not present in the source", e.ID)
}
