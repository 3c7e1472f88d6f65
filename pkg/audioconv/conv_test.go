package audioconv

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(n, rate int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate)))
	}
	return out
}

func TestEncodeDecodeWAV(t *testing.T) {
	in := sine(1600, TargetRate, 440)
	data, err := EncodeWAV(in, TargetRate)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
	assert.Equal(t, "WAVE", string(data[8:12]))

	for _, name := range []string{"clip.wav", "upload"} {
		t.Run(name, func(t *testing.T) {
			out, err := Decode(bytes.NewReader(data), name, Options{})
			require.NoError(t, err)
			require.Len(t, out, len(in))
			for i := range in {
				assert.InDelta(t, in[i], out[i], 1e-3)
			}
		})
	}
}

func TestDecodeResamplesAndCaps(t *testing.T) {
	data, err := EncodeWAV(sine(8000, 8000, 200), 8000)
	require.NoError(t, err)

	out, err := Decode(bytes.NewReader(data), "a.wav", Options{})
	require.NoError(t, err)
	assert.Len(t, out, 16000)

	capped, err := Decode(bytes.NewReader(data), "a.wav", Options{MaxSamples: 100})
	require.NoError(t, err)
	assert.Len(t, capped, 100)
}

func TestDecodeFile(t *testing.T) {
	data, err := EncodeWAV(sine(320, TargetRate, 440), TargetRate)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "x.wav")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	out, err := DecodeFile(path, Options{})
	require.NoError(t, err)
	assert.Len(t, out, 320)

	_, err = DecodeFile(filepath.Join(t.TempDir(), "missing.wav"), Options{})
	assert.Error(t, err)
}

func TestDecodeUnsupported(t *testing.T) {
	_, err := Decode(bytes.NewReader([]byte("hello world, not audio")), "notes.txt", Options{})
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Decode(bytes.NewReader([]byte("RIFFjunk")), "bad.wav", Options{})
	assert.Error(t, err)
}

func TestEncodeWAVEmpty(t *testing.T) {
	_, err := EncodeWAV(nil, TargetRate)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDownmixAndResample(t *testing.T) {
	assert.Equal(t, []float32{0.5, 0}, downmixInterleaved([]float32{1, 0, 0.5, -0.5}, 2))
	assert.Equal(t, []float32{1, 2}, downmixInterleaved([]float32{1, 2}, 1))

	up := resampleLinear([]float32{0, 1}, 1, 2)
	assert.Equal(t, []float32{0, 0.5, 1, 1}, up)
	assert.Len(t, resampleLinear(make([]float32, 48000), 48000, 16000), 16000)
}

func TestMemWriteSeeker(t *testing.T) {
	m := &memWriteSeeker{}
	_, _ = m.Write([]byte("abcdef"))
	_, err := m.Seek(1, 0)
	require.NoError(t, err)
	_, _ = m.Write([]byte("XY"))
	assert.Equal(t, "aXYdef", string(m.buf))

	_, err = m.Seek(-10, 1)
	assert.Error(t, err)
}
