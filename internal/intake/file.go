package intake

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
)

// File is a user-selected binary file. Open may be called more than once:
// once to build the preview and once more to upload the payload.
type File interface {
	Name() string
	ContentType() string
	Size() int64
	Open() (io.ReadCloser, error)
}

type bytesFile struct {
	name        string
	contentType string
	data        []byte
}

func NewBytesFile(name, contentType string, data []byte) File {
	return &bytesFile{name: name, contentType: contentType, data: data}
}

func (f *bytesFile) Name() string        { return f.name }
func (f *bytesFile) ContentType() string { return f.contentType }
func (f *bytesFile) Size() int64         { return int64(len(f.data)) }

func (f *bytesFile) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.data)), nil
}

type multipartFile struct {
	fh *multipart.FileHeader
}

// FromMultipart wraps an uploaded form file. Returns nil for a nil header so
// an empty file input maps to "no file selected".
func FromMultipart(fh *multipart.FileHeader) File {
	if fh == nil {
		return nil
	}
	return &multipartFile{fh: fh}
}

func (f *multipartFile) Name() string        { return f.fh.Filename }
func (f *multipartFile) ContentType() string { return f.fh.Header.Get("Content-Type") }
func (f *multipartFile) Size() int64         { return f.fh.Size }

func (f *multipartFile) Open() (io.ReadCloser, error) {
	return f.fh.Open()
}

type pathFile struct {
	path string
	size int64
}

// FromPath wraps a file on disk. The media type is guessed from the extension.
func FromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &pathFile{path: path, size: info.Size()}, nil
}

func (f *pathFile) Name() string { return filepath.Base(f.path) }

func (f *pathFile) ContentType() string {
	return mime.TypeByExtension(filepath.Ext(f.path))
}

func (f *pathFile) Size() int64 { return f.size }

func (f *pathFile) Open() (io.ReadCloser, error) {
	return os.Open(f.path)
}
