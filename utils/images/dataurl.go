package images

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"

	"github.com/disintegration/imaging"

	// raster decoders for downscaling
	_ "image/gif"

	_ "golang.org/x/image/webp"
)

// EmbedOptions controls preprocessing before data-URL embedding.
type EmbedOptions struct {
	// MaxWidth downscales rasters wider than this many pixels; 0 disables.
	MaxWidth int
	// RasterizeSVG converts SVG resources to PNG for clients that cannot
	// render inline SVG data URLs.
	RasterizeSVG bool
	// JPEGQuality is used when re-encoding downscaled JPEG images.
	JPEGQuality int
}

// DataURL encodes an image resource as a data: URL. Unrecognized resource
// types are an error - the caller decides whether to keep the original
// reference instead.
func DataURL(data []byte, name string, opts EmbedOptions) (string, error) {
	kind := Detect(data, name)
	if kind == KindUnknown {
		return "", fmt.Errorf("unrecognized image type for %q", name)
	}

	if kind == KindSVG && opts.RasterizeSVG {
		img, err := RasterizeSVG(data, opts.MaxWidth, 0)
		if err != nil {
			return "", fmt.Errorf("unable to rasterize %q: %w", name, err)
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return "", err
		}
		data, kind = buf.Bytes(), KindPNG
	} else if kind != KindSVG && opts.MaxWidth > 0 {
		// best effort: undecodable payloads are embedded as-is
		if scaled, scaledKind, ok := downscale(data, kind, opts); ok {
			data, kind = scaled, scaledKind
		}
	}

	return "data:" + kind.MIME() + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

// downscale re-encodes rasters wider than opts.MaxWidth, preserving aspect
// ratio. JPEG stays JPEG, everything else becomes PNG.
func downscale(data []byte, kind Kind, opts EmbedOptions) ([]byte, Kind, bool) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil || img.Bounds().Dx() <= opts.MaxWidth {
		return nil, kind, false
	}
	resized := imaging.Resize(img, opts.MaxWidth, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if kind == KindJPEG {
		quality := opts.JPEGQuality
		if quality <= 0 {
			quality = 85
		}
		err = jpeg.Encode(&buf, resized, &jpeg.Options{Quality: quality})
	} else {
		kind = KindPNG
		err = png.Encode(&buf, resized)
	}
	if err != nil {
		return nil, kind, false
	}
	return buf.Bytes(), kind, true
}
