package inventory

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindsClassifyThroughWrapping(t *testing.T) {
	netErr := fmt.Errorf("connect: %w", &NetworkError{Op: "probe", Err: context.DeadlineExceeded})
	assert.True(t, IsNetwork(netErr))
	assert.False(t, IsValidation(netErr))

	var ne *NetworkError
	require.True(t, errors.As(netErr, &ne))
	assert.True(t, ne.Timeout())
	assert.ErrorIs(t, netErr, context.DeadlineExceeded)

	storeErr := fmt.Errorf("persist: %w", &StorageError{Key: "catalog", Err: ErrCapacityExceeded})
	assert.True(t, IsStorage(storeErr))
	assert.ErrorIs(t, storeErr, ErrCapacityExceeded)

	valErr := &ValidationError{Field: "sku", Reason: "missing"}
	assert.True(t, IsValidation(valErr))
	assert.Equal(t, "validation: sku: missing", valErr.Error())
}

func TestParseOrigin(t *testing.T) {
	tests := []struct {
		in      string
		want    Origin
		wantErr bool
	}{
		{"", OriginScanner, false},
		{"scanner", OriginScanner, false},
		{" Manual ", OriginManual, false},
		{"camera", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseOrigin(tt.in)
			if tt.wantErr {
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNotFoundSentinel(t *testing.T) {
	e := NotFound("12345")
	assert.True(t, e.IsNotFound())
	assert.Equal(t, "12345", e.SKU)
	assert.Equal(t, "12345", e.ALU)
	assert.False(t, CatalogEntry{SKU: "1", ALU: "2", Description: "Shoe"}.IsNotFound())
}
