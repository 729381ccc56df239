// Package archive unpacks cbz/cbr bundles into page image sets and builds
// the packaged cbz of a released book.
package archive

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nwaples/rardecode"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/zcomx/zco-mx/log"
	"github.com/zcomx/zco-mx/rendition"
)

// ErrUnpack marks a malformed or empty archive. Per-archive, non-fatal:
// the rest of an upload batch proceeds.
var ErrUnpack = errors.New("unable to unpack archive")

const (
	KindZip = "zip"
	KindRar = "rar"
)

// Kind sniffs the archive type from the file's magic number.
func Kind(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return ""
	}
	switch {
	case mtype.Is("application/zip"):
		return KindZip
	case mtype.Is("application/x-rar-compressed"), mtype.Is("application/x-rar"):
		return KindRar
	}
	return ""
}

// Unpack extracts the image members of a cbz/cbr into the scratch
// directory and returns their paths sorted lexicographically, which is the
// page order these formats imply. Non-image members are ignored.
func Unpack(path, scratch string) ([]string, error) {
	switch Kind(path) {
	case KindZip:
		if err := unpackZip(path, scratch); err != nil {
			return nil, errors.Wrapf(ErrUnpack, "%s: %v", path, err)
		}
	case KindRar:
		if err := unpackRar(path, scratch); err != nil {
			return nil, errors.Wrapf(ErrUnpack, "%s: %v", path, err)
		}
	default:
		return nil, errors.Wrapf(ErrUnpack, "%s: unknown archive kind", path)
	}

	images, err := collectImages(scratch)
	if err != nil {
		return nil, errors.Wrapf(ErrUnpack, "%s: %v", path, err)
	}
	if len(images) == 0 {
		return nil, errors.Wrapf(ErrUnpack, "%s: no image files extracted", path)
	}

	sort.Strings(images)
	return images, nil
}

func unpackZip(path, scratch string) error {
	fd, err := zip.OpenReader(path)
	if err != nil {
		return err
	}
	defer fd.Close()

	for _, member := range fd.File {
		if member.FileInfo().IsDir() {
			continue
		}
		dst, err := memberPath(scratch, member.Name)
		if err != nil {
			return err
		}
		rc, err := member.Open()
		if err != nil {
			return err
		}
		if err := writeMember(dst, rc); err != nil {
			rc.Close()
			return err
		}
		rc.Close()
	}
	return nil
}

func unpackRar(path, scratch string) error {
	rd, err := rardecode.OpenReader(path, "")
	if err != nil {
		return err
	}
	defer rd.Close()

	for {
		header, err := rd.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if header.IsDir {
			continue
		}
		dst, err := memberPath(scratch, header.Name)
		if err != nil {
			return err
		}
		if err := writeMember(dst, rd); err != nil {
			return err
		}
	}
}

// memberPath maps an archive member name into the scratch dir, refusing
// names that would escape it.
func memberPath(scratch, name string) (string, error) {
	dst := filepath.Join(scratch, filepath.FromSlash(name))
	if !strings.HasPrefix(dst, filepath.Clean(scratch)+string(os.PathSeparator)) {
		return "", errors.Errorf("illegal member path: %s", name)
	}
	return dst, nil
}

func writeMember(dst string, src io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		return err
	}
	fd, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer fd.Close()
	_, err = io.Copy(fd, src)
	return err
}

// collectImages walks the extraction recursively; archives with deep
// directory trees are fine.
func collectImages(root string) ([]string, error) {
	images := make([]string, 0)
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if rendition.IsImage(path) {
			images = append(images, path)
		} else {
			log.Debug("Skipping non-image archive member", zap.String("path", path))
		}
		return nil
	})
	return images, err
}
