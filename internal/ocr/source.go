package ocr

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
)

// MaxImageBytes caps the size of an encoded image read from a path or stream.
const MaxImageBytes = 20 * 1024 * 1024

// Source is an image handed to an Extractor. Build one with FromPath,
// FromReader or FromImage.
type Source struct {
	path   string
	reader io.Reader
	img    image.Image
}

// FromPath reads the image from a file.
func FromPath(path string) Source {
	return Source{path: path}
}

// FromReader reads the image from a stream. The stream is consumed once.
func FromReader(r io.Reader) Source {
	return Source{reader: r}
}

// FromImage uses an already decoded image.
func FromImage(img image.Image) Source {
	return Source{img: img}
}

// Describe returns a short label for logs.
func (s Source) Describe() string {
	switch {
	case s.img != nil:
		b := s.img.Bounds()
		return fmt.Sprintf("image %dx%d", b.Dx(), b.Dy())
	case s.path != "":
		return s.path
	case s.reader != nil:
		return "stream"
	default:
		return "none"
	}
}

// Decode normalizes the source to a decoded image. PNG, JPEG and GIF inputs
// are supported.
func (s Source) Decode() (image.Image, error) {
	const op = "Decode"

	switch {
	case s.img != nil:
		return s.img, nil
	case s.path != "":
		f, err := os.Open(s.path)
		if err != nil {
			return nil, WrapOCRError(op, err, "failed to open image file")
		}
		defer f.Close()
		return decodeStream(f)
	case s.reader != nil:
		return decodeStream(s.reader)
	default:
		return nil, WrapOCRError(op, ErrNoSource, "")
	}
}

func decodeStream(r io.Reader) (image.Image, error) {
	const op = "Decode"

	data, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to read image data")
	}
	if len(data) > MaxImageBytes {
		return nil, WrapOCRError(op, ErrImageTooLarge, "")
	}
	if len(data) == 0 {
		return nil, WrapOCRError(op, ErrInvalidImage, "empty input")
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, WrapOCRError(op, ErrInvalidImage, err.Error())
	}
	return img, nil
}

// encodePNG serializes a decoded image for engines that take bytes.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, WrapOCRError("Encode", err, "failed to encode image as PNG")
	}
	if buf.Len() > MaxImageBytes {
		return nil, WrapOCRError("Encode", ErrImageTooLarge, fmt.Sprintf("encoded size: %d bytes", buf.Len()))
	}
	return buf.Bytes(), nil
}
