package frame

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// coordFrame builds a 4x2 frame where every pixel's first channel encodes
// its x coordinate and the second channel its y coordinate, which makes
// orientation changes easy to assert on.
func coordFrame(t *testing.T) *Frame {
	t.Helper()
	f := New(4, 2, time.Now())
	t.Cleanup(func() { f.Close() })
	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			f.Mat.SetUCharAt(y, x*3, byte(x))
			f.Mat.SetUCharAt(y, x*3+1, byte(y))
		}
	}
	return f
}

func TestFromBytesRejectsShortBuffer(t *testing.T) {
	_, err := FromBytes(4, 2, make([]byte, 10), time.Now())
	assert.ErrorContains(t, err, "10 bytes")
}

func TestFromBytesCopiesPixels(t *testing.T) {
	pix := make([]byte, 4*2*3)
	pix[0] = 42
	f, err := FromBytes(4, 2, pix, time.Now())
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, 4, f.Width())
	assert.Equal(t, 2, f.Height())
	assert.Equal(t, 3, f.Channels())
	assert.Equal(t, byte(42), f.Mat.GetUCharAt(0, 0))

	// the frame must not alias the caller's buffer
	pix[0] = 7
	assert.Equal(t, byte(42), f.Mat.GetUCharAt(0, 0))
}

func TestCloneIsIndependent(t *testing.T) {
	f := coordFrame(t)
	c := f.Clone()
	defer c.Close()

	c.Mat.SetUCharAt(0, 0, 200)

	assert.Equal(t, byte(0), f.Mat.GetUCharAt(0, 0), "mutating the clone must not touch the original")
	assert.Equal(t, f.Timestamp, c.Timestamp)
}

func TestMirrorSwapsColumns(t *testing.T) {
	f := coordFrame(t)
	f.Mirror()

	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			assert.Equal(t, byte(f.Width()-1-x), f.Mat.GetUCharAt(y, x*3), "first channel at (%d,%d)", x, y)
			assert.Equal(t, byte(y), f.Mat.GetUCharAt(y, x*3+1), "second channel at (%d,%d)", x, y)
		}
	}
}

func TestFlipVerticalSwapsRows(t *testing.T) {
	f := coordFrame(t)
	f.FlipVertical()

	for y := 0; y < f.Height(); y++ {
		for x := 0; x < f.Width(); x++ {
			assert.Equal(t, byte(x), f.Mat.GetUCharAt(y, x*3))
			assert.Equal(t, byte(f.Height()-1-y), f.Mat.GetUCharAt(y, x*3+1))
		}
	}
}

func TestResizeKeepsAspectRatio(t *testing.T) {
	f := New(400, 225, time.Now())
	defer f.Close()

	small := f.Resize(200)
	defer small.Close()

	assert.Equal(t, 200, small.Width())
	assert.Equal(t, 112, small.Height())
	assert.Equal(t, 3, small.Channels())
	assert.Equal(t, f.Timestamp, small.Timestamp)
}

func TestGrayHasOneChannel(t *testing.T) {
	f := coordFrame(t)
	g := f.Gray()
	defer g.Close()

	assert.Equal(t, 1, g.Channels())
	assert.Equal(t, f.Width(), g.Width())
	assert.Equal(t, f.Height(), g.Height())
}

func TestGrayOnGrayscaleReturnsCopy(t *testing.T) {
	f := coordFrame(t)
	g := f.Gray()
	defer g.Close()

	gg := g.Gray()
	defer gg.Close()
	gg.Mat.SetUCharAt(0, 0, 99)

	assert.Equal(t, 1, gg.Channels())
	assert.NotEqual(t, byte(99), g.At(0, 0))
}

func TestEncodeJPEGProducesValidHeader(t *testing.T) {
	f := New(8, 8, time.Now())
	defer f.Close()

	data, err := f.EncodeJPEG(80)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0xff, 0xd8}), "jpeg SOI marker")
}

func TestSaveJPEGWritesFile(t *testing.T) {
	f := coordFrame(t)
	path := filepath.Join(t.TempDir(), "snapshot.jpg")
	require.NoError(t, f.SaveJPEG(path, 75))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte{0xff, 0xd8}))
}

func TestSaveJPEGBadPath(t *testing.T) {
	f := coordFrame(t)
	err := f.SaveJPEG(filepath.Join(t.TempDir(), "missing", "snapshot.jpg"), 75)
	assert.Error(t, err)
}
