package textures

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// Format names an encoded image format. The zero value asks Decode to
// sniff the bytes.
type Format string

const (
	Auto Format = ""
	PNG  Format = "png"
	JPEG Format = "jpg"
	GIF  Format = "gif"
	BMP  Format = "bmp"
	TIFF Format = "tif"
	WebP Format = "webp"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

var decoders = map[Format]func(io.Reader) (image.Image, error){
	PNG:  png.Decode,
	JPEG: jpeg.Decode,
	GIF:  gif.Decode,
	BMP:  bmp.Decode,
	TIFF: tiff.Decode,
	WebP: webp.Decode,
}

// FormatOf maps a file extension to a Format, or Auto when unknown.
func FormatOf(path string) Format {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "png":
		return PNG
	case "jpg", "jpeg":
		return JPEG
	case "gif":
		return GIF
	case "bmp":
		return BMP
	case "tif", "tiff":
		return TIFF
	case "webp":
		return WebP
	}
	return Auto
}

// IsImage reports whether path names a format Decode understands.
func IsImage(path string) bool { return FormatOf(path) != Auto }

// Decode turns encoded bytes into an image. An explicit hint wins over
// the sniffed content type.
func Decode(data []byte, hint Format) (image.Image, Format, error) {
	format := hint
	if format == Auto {
		kind, err := filetype.Match(data)
		if err != nil || kind == filetype.Unknown {
			return nil, Auto, ErrUnsupportedFormat
		}
		format = Format(kind.Extension)
	}
	dec, ok := decoders[format]
	if !ok {
		return nil, format, fmt.Errorf("%w: %q", ErrUnsupportedFormat, string(format))
	}
	img, err := dec(bytes.NewReader(data))
	if err != nil {
		return nil, format, fmt.Errorf("decode %s: %w", format, err)
	}
	return img, format, nil
}
