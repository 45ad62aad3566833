// Package intake validates user-selected images and turns them into previews
// and upload payloads.
package intake

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"net/http"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

const (
	// MaxImageBytes is the exclusive upper bound on a selected image's size.
	MaxImageBytes int64 = 500000

	MsgImageTooLarge    = "The image file must be below 0,5 MB"
	MsgImageUnsupported = "The file must be a JPEG, PNG, GIF, WebP or BMP image"
)

var (
	ErrImageTooLarge    = errors.New(MsgImageTooLarge)
	ErrImageUnsupported = errors.New(MsgImageUnsupported)
)

// Raster formats that can be previewed and stored. SVG is left out since it
// can carry script.
var imageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
}

// DecodeError reports a selected file that could not be read.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to read image %q: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

type Policy struct {
	MaxBytes int64
}

func DefaultPolicy() Policy {
	return Policy{MaxBytes: MaxImageBytes}
}

// Check accepts a file only when its size is strictly below MaxBytes.
func (p Policy) Check(f File) error {
	max := p.MaxBytes
	if max <= 0 {
		max = MaxImageBytes
	}
	if f.Size() >= max {
		return ErrImageTooLarge
	}
	return nil
}

// Preview is the displayable in-memory representation of a selected image.
type Preview struct {
	DataURI   string
	MediaType string

	// Zero when the header is not a known image format.
	Width  int
	Height int
}

type Result struct {
	Preview Preview
	Err     error
}

// Payload is the raw binary body uploaded to the blob store.
type Payload struct {
	Name        string
	ContentType string
	Data        []byte
}

func ReadPayload(f File) (Payload, error) {
	data, err := readAll(f)
	if err != nil {
		return Payload{}, err
	}
	mt, err := mediaType(f.ContentType(), data)
	if err != nil {
		return Payload{}, err
	}
	return Payload{
		Name:        f.Name(),
		ContentType: mt,
		Data:        data,
	}, nil
}

// Decode reads f and encodes it as a data URI.
func Decode(ctx context.Context, f File) (Preview, error) {
	if err := ctx.Err(); err != nil {
		return Preview{}, err
	}

	data, err := readAll(f)
	if err != nil {
		return Preview{}, err
	}

	if err := ctx.Err(); err != nil {
		return Preview{}, err
	}

	mt, err := mediaType(f.ContentType(), data)
	if err != nil {
		return Preview{}, err
	}
	preview := Preview{
		DataURI:   "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data),
		MediaType: mt,
	}

	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		preview.Width = cfg.Width
		preview.Height = cfg.Height
	}

	return preview, nil
}

// DecodeAsync runs Decode in the background. The returned channel yields
// exactly one Result and is then closed.
func DecodeAsync(ctx context.Context, f File) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		preview, err := Decode(ctx, f)
		out <- Result{Preview: preview, Err: err}
	}()
	return out
}

func readAll(f File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, &DecodeError{Name: f.Name(), Err: err}
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, &DecodeError{Name: f.Name(), Err: err}
	}
	return data, nil
}

// mediaType resolves the type a file is previewed and stored under. A
// declared image type is kept unless the content sniffs as markup; anything
// else must sniff as an image itself. Parameters are dropped so the value can
// sit inside a data URI.
func mediaType(declared string, data []byte) (string, error) {
	sniffed, _, _ := mime.ParseMediaType(http.DetectContentType(data))
	if imageTypes[sniffed] {
		return sniffed, nil
	}
	if sniffed == "text/html" || sniffed == "text/xml" {
		return "", ErrImageUnsupported
	}
	if mt, _, err := mime.ParseMediaType(strings.TrimSpace(declared)); err == nil && imageTypes[mt] {
		return mt, nil
	}
	return "", ErrImageUnsupported
}
