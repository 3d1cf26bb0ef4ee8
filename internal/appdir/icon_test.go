package appdir

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writePNG(t *testing.T, path string, size int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
}

func TestResolveIconBucketSVG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.svg")
	require.NoError(t, os.WriteFile(path, []byte("<svg/>"), 0644))

	bucket, square, err := resolveIconBucket(path)
	require.NoError(t, err)
	require.Equal(t, "scalable", bucket)
	require.True(t, square)
}

func TestResolveIconBucketValidPNG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")
	writePNG(t, path, 64)

	bucket, square, err := resolveIconBucket(path)
	require.NoError(t, err)
	require.Equal(t, "64x64", bucket)
	require.True(t, square)
}

func TestResolveIconBucketInvalidXResolution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")
	writePNG(t, path, 17)

	_, _, err := resolveIconBucket(path)
	require.Error(t, err)

	appErr, ok := err.(*Error)
	require.True(t, ok)
	require.Equal(t, KindIconResolution, appErr.Kind)
	require.Contains(t, appErr.Error(), "invalid x resolution")
}

func TestResolveIconBucketInvalidYResolutionMessage(t *testing.T) {
	// A rectangular image whose width is valid and height is not: the
	// y-check must report "y resolution", not a copy-pasted x message.
	dir := t.TempDir()
	path := filepath.Join(dir, "icon.png")

	img := image.NewRGBA(image.Rect(0, 0, 64, 17))
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	_, _, err := resolveIconBucket(path)
	require.Error(t, err)

	appErr, ok := err.(*Error)
	require.True(t, ok)
	require.Contains(t, appErr.Error(), "invalid y resolution")
}
