package appdir

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// validIconSizes are the hicolor theme resolutions accepted for raster
// icons.
var validIconSizes = map[int]bool{
	8: true, 16: true, 20: true, 22: true, 24: true, 32: true, 48: true,
	64: true, 72: true, 96: true, 128: true, 192: true, 256: true, 512: true,
}

// resolveIconBucket maps an icon file to its hicolor theme directory: an
// .svg extension maps to "scalable"; otherwise the image is decoded and its
// "<W>x<H>" resolution becomes the bucket name. Non-square icons are
// allowed but reported so the caller can warn about them.
func resolveIconBucket(path string) (bucket string, square bool, err error) {
	if strings.EqualFold(filepath.Ext(path), ".svg") {
		return "scalable", true, nil
	}

	f, openErr := os.Open(path)
	if openErr != nil {
		return "", false, &Error{Kind: KindImageDecode, Path: path, Err: openErr}
	}
	defer f.Close()

	cfg, _, decodeErr := image.DecodeConfig(f)
	if decodeErr != nil {
		return "", false, &Error{Kind: KindImageDecode, Path: path, Err: decodeErr}
	}

	width, height := cfg.Width, cfg.Height

	if !validIconSizes[width] {
		return "", false, newErr(KindIconResolution, path, "icon has invalid x resolution: %d", width)
	}
	if !validIconSizes[height] {
		return "", false, newErr(KindIconResolution, path, "icon has invalid y resolution: %d", height)
	}

	return strconv.Itoa(width) + "x" + strconv.Itoa(height), width == height, nil
}
