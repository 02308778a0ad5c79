package embedder

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/drishti/internal/detector"
)

func TestEmbedding_CloneIsIndependent(t *testing.T) {
	e := Embedding{1, 2, 3}
	c := e.Clone()
	c[0] = 42

	assert.Equal(t, float32(1), e[0])
	assert.True(t, Embedding{1, 2, 3}.Equal(e))
	assert.False(t, e.Equal(c))
	assert.False(t, e.Equal(Embedding{1, 2}))
	assert.Nil(t, Embedding(nil).Clone())
}

func TestEmbedding_Normalize(t *testing.T) {
	n := Embedding{3, 4}.Normalize()
	assert.InDelta(t, 0.6, n[0], 1e-6)
	assert.InDelta(t, 0.8, n[1], 1e-6)
	assert.InDelta(t, 1.0, n.Norm(), 1e-6)

	zero := Embedding{0, 0, 0}
	assert.Equal(t, zero, zero.Normalize())
}

func TestAverage(t *testing.T) {
	t.Run("averages and normalises", func(t *testing.T) {
		avg, err := Average([]Embedding{{1, 0}, {0, 1}})
		require.NoError(t, err)
		assert.InDelta(t, math.Sqrt2/2, avg[0], 1e-6)
		assert.InDelta(t, math.Sqrt2/2, avg[1], 1e-6)
	})

	t.Run("no samples", func(t *testing.T) {
		_, err := Average(nil)
		assert.ErrorIs(t, err, ErrNoSamples)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Average([]Embedding{{1, 0}, {1, 0, 0}})
		assert.Error(t, err)
	})
}

func solidFrame(width, height int, p uint32) []uint32 {
	px := make([]uint32, width*height)
	for i := range px {
		px[i] = p
	}
	return px
}

func TestPreparePatch(t *testing.T) {
	red := uint32(0xffff0000)
	pixels := solidFrame(64, 48, red)

	t.Run("normalises a solid crop", func(t *testing.T) {
		patch, err := PreparePatch(pixels, 64, 48, detector.Box{Left: 10, Top: 5, Right: 50, Bottom: 45}, 16)
		require.NoError(t, err)
		require.Equal(t, 16, patch.Size)
		require.Len(t, patch.Data, 16*16*3)

		hi := float32((255 - 127.5) / 128)
		lo := float32(-127.5 / 128)
		for i := 0; i < len(patch.Data); i += 3 {
			assert.InDelta(t, hi, patch.Data[i], 1e-5)
			assert.InDelta(t, lo, patch.Data[i+1], 1e-5)
			assert.InDelta(t, lo, patch.Data[i+2], 1e-5)
		}
	})

	t.Run("clamps boxes that overflow the frame", func(t *testing.T) {
		patch, err := PreparePatch(pixels, 64, 48, detector.Box{Left: 40, Top: 30, Right: 100, Bottom: 90}, 8)
		require.NoError(t, err)
		assert.Len(t, patch.Data, 8*8*3)
	})

	t.Run("box outside frame", func(t *testing.T) {
		_, err := PreparePatch(pixels, 64, 48, detector.Box{Left: 70, Top: 0, Right: 90, Bottom: 20}, 8)
		assert.ErrorIs(t, err, ErrEmptyPatch)
	})

	t.Run("bad frame", func(t *testing.T) {
		_, err := PreparePatch(pixels, 10, 10, detector.Box{Right: 5, Bottom: 5}, 8)
		assert.Error(t, err)
		_, err = PreparePatch(pixels, 64, 48, detector.Box{Right: 5, Bottom: 5}, 0)
		assert.Error(t, err)
	})
}

func TestEncodePatch(t *testing.T) {
	payload := encodePatch(Patch{Size: 1, Data: []float32{0.5, -1, 1}})
	require.Len(t, payload, 16)
	assert.Equal(t, uint32(1), binary.BigEndian.Uint32(payload[0:4]))
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(payload[4:8])))
	assert.Equal(t, float32(-1), math.Float32frombits(binary.LittleEndian.Uint32(payload[8:12])))
}

func TestDecodeEmbedding(t *testing.T) {
	emb, err := decodeEmbedding([]byte(`{"embedding":[0.1,0.2,0.3]}`), 3)
	require.NoError(t, err)
	assert.Equal(t, Embedding{0.1, 0.2, 0.3}, emb)

	_, err = decodeEmbedding([]byte(`{"embedding":[0.1,0.2]}`), 3)
	assert.Error(t, err)

	_, err = decodeEmbedding([]byte(`{"error":"no model"}`), 3)
	assert.Error(t, err)

	_, err = decodeEmbedding([]byte(`{`), 3)
	assert.Error(t, err)
}

func TestMockEmbedder(t *testing.T) {
	m := Fixed(Embedding{1, 2})
	emb, err := m.Embed(context.Background(), Patch{})
	require.NoError(t, err)
	assert.Equal(t, Embedding{1, 2}, emb)
	assert.Equal(t, 1, m.Calls())

	boom := errors.New("boom")
	m.SetFunc(func(Patch) (Embedding, error) { return nil, boom })
	_, err = m.Embed(context.Background(), Patch{})
	assert.ErrorIs(t, err, boom)

	var _ Embedder = (*SidecarEmbedder)(nil)
}
