package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorsWrap(t *testing.T) {
	t.Parallel()

	wrapped := fmt.Errorf("asset 42: %w", ErrNotFound)
	assert.True(t, errors.Is(wrapped, ErrNotFound))
	assert.False(t, errors.Is(wrapped, ErrConflict))

	deep := fmt.Errorf("ingest: %w", fmt.Errorf("%w: http 503", ErrFetch))
	assert.True(t, errors.Is(deep, ErrFetch))
}

func TestSentinelErrorsDistinct(t *testing.T) {
	t.Parallel()

	sentinels := []error{
		ErrNotFound, ErrConflict, ErrFetch, ErrUnsupportedFormat,
		ErrStorageWrite, ErrPartialDelete, ErrInvalidPath,
	}
	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
			}
		}
	}
}
