package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeVector(t *testing.T) {
	v := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, v[0], 0.0001)
	assert.InDelta(t, 0.8, v[1], 0.0001)

	zero := NormalizeVector([]float32{0, 0, 0})
	assert.Equal(t, []float32{0, 0, 0}, zero)
}
