package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexing(t *testing.T) {
	t.Parallel()
	x := New(2, 3, 4)
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			for k := 0; k < 4; k++ {
				x.Set(i, j, k, float64(100*i+10*j+k))
			}
		}
	}
	assert.Equal(t, 123.0, x.At(1, 2, 3))
	assert.Equal(t, []float64{110, 111, 112, 113}, x.Row(1, 1))
	assert.Len(t, x.Slab(1), 12)
	assert.Equal(t, 100.0, x.Slab(1)[0])

	// Row aliases the backing array.
	x.Row(0, 0)[2] = -1
	assert.Equal(t, -1.0, x.At(0, 0, 2))
}

func TestFromData(t *testing.T) {
	t.Parallel()
	_, err := FromData([3]int{1, 2, 3}, make([]float64, 5))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs 6 values, got 5")

	x, err := FromData([3]int{1, 2, 3}, make([]float64, 6))
	require.NoError(t, err)
	assert.Equal(t, [3]int{1, 2, 3}, x.Shape)
}

func TestClone(t *testing.T) {
	t.Parallel()
	x := New(1, 1, 2)
	x.Set(0, 0, 1, 5)
	y := x.Clone()
	y.Set(0, 0, 1, 7)
	assert.Equal(t, 5.0, x.At(0, 0, 1))
	assert.Equal(t, "Tensor3[1 1 2]", x.String())
}
