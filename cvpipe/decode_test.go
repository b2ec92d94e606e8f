package cvpipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBytesToMatBGRProducesExpectedDimensions(t *testing.T) {
	w, h := 4, 3
	raw := make([]byte, w*h*3)
	for i := range raw {
		raw[i] = byte(i % 256)
	}

	mat, err := bytesToMatBGR(raw, w, h)
	require.NoError(t, err)
	defer mat.Close()

	assert.Equal(t, h, mat.Rows())
	assert.Equal(t, w, mat.Cols())
	assert.False(t, mat.Empty())
}

func TestPushOnNilDecoderIsSafe(t *testing.T) {
	var d *Decoder
	assert.NotPanics(t, func() { d.Push(nil) })
}
