package confidence

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAggregate(t *testing.T) {
	require.Equal(t, 0.0, Aggregate(nil))
	require.Equal(t, 0.5, Aggregate([]float64{0.5}))
	require.InDelta(t, 0.6, Aggregate([]float64{0.4, 0.6, 0.8}), 1e-12)
}

func TestClamp(t *testing.T) {
	require.Equal(t, 0.2, Clamp(0.1, 0.2, 0.9))
	require.Equal(t, 0.9, Clamp(1.5, 0.2, 0.9))
	require.Equal(t, 0.5, Clamp(0.5, 0.2, 0.9))
}
