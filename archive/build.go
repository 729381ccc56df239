package archive

import (
	"archive/zip"
	"compress/flate"
	"io"
	"os"

	"github.com/pkg/errors"
)

// Builder writes a cbz with maximum compression. Members are written in
// the order they are added; the release packager adds them in page order.
type Builder struct {
	fd *os.File
	zw *zip.Writer
}

func NewBuilder(path string) (*Builder, error) {
	fd, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to create archive %s", path)
	}
	zw := zip.NewWriter(fd)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})
	return &Builder{fd: fd, zw: zw}, nil
}

// SetComment embeds the archive comment. Must be called before Close.
func (b *Builder) SetComment(comment string) error {
	return b.zw.SetComment(comment)
}

// AddFile adds the file at src as a member named name.
func (b *Builder) AddFile(name, src string) error {
	in, err := os.Open(src)
	if err != nil {
		return errors.Wrapf(err, "unable to open member %s", src)
	}
	defer in.Close()

	w, err := b.zw.Create(name)
	if err != nil {
		return errors.Wrapf(err, "unable to add member %s", name)
	}
	if _, err := io.Copy(w, in); err != nil {
		return errors.Wrapf(err, "unable to write member %s", name)
	}
	return nil
}

func (b *Builder) Close() error {
	if err := b.zw.Close(); err != nil {
		b.fd.Close()
		return errors.Wrap(err, "unable to finalize archive")
	}
	return errors.Wrap(b.fd.Close(), "unable to close archive")
}

// Abort discards a partially written archive.
func (b *Builder) Abort() {
	b.zw.Close()
	b.fd.Close()
	os.Remove(b.fd.Name())
}
