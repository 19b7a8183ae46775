package genoparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSampleSetRejectsDuplicates(t *testing.T) {
	_, err := NewSampleSet([]string{"s1", "s2", "s1"})
	assert.Error(t, err)
}

func TestPermutation(t *testing.T) {
	s, err := NewSampleSet([]string{"s1", "s2", "s3"})
	require.NoError(t, err)

	perm, err := s.Permutation([]string{"s3", "s1"})
	require.NoError(t, err)
	assert.Equal(t, []int{2, 0}, perm)
}

func TestPermutationUnknownSample(t *testing.T) {
	s, err := NewSampleSet([]string{"s1", "s2"})
	require.NoError(t, err)

	_, err = s.Permutation([]string{"s1", "nobody"})
	require.Error(t, err)
	use, ok := err.(*UnknownSampleError)
	require.True(t, ok)
	assert.Equal(t, "nobody", use.ID)
}

func TestUniqueSampleIDs(t *testing.T) {
	// Unique individual IDs win.
	ids := UniqueSampleIDs([]string{"f1", "f2"}, []string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, ids)

	// A collision forces the compound form for every sample.
	ids = UniqueSampleIDs([]string{"f1", "f2"}, []string{"a", "a"})
	assert.Equal(t, []string{"f1_a", "f2_a"}, ids)
}
