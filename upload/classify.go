// Package upload turns uploaded artifacts into book pages. A classifier
// sniffs each file and dispatches to one of three handler variants:
// image (one page), archive (many pages), unsupported (error record).
package upload

import (
	"github.com/gabriel-vasile/mimetype"

	"github.com/zcomx/zco-mx/archive"
	"github.com/zcomx/zco-mx/rendition"
)

const (
	KindImage       = "image"
	KindArchive     = "archive"
	KindUnsupported = "unsupported"
)

// Classify sniffs the file's magic number. It never fails: anything that
// is neither a whitelisted image nor a zip/rar degrades to unsupported.
func Classify(path string) string {
	if rendition.IsImage(path) {
		return KindImage
	}
	if archive.Kind(path) != "" {
		return KindArchive
	}
	return KindUnsupported
}

// sniffExt returns a file extension for the stored rendition name based
// on content, falling back to .jpg when detection fails.
func sniffExt(path string) string {
	mtype, err := mimetype.DetectFile(path)
	if err != nil || mtype.Extension() == "" {
		return ".jpg"
	}
	return mtype.Extension()
}
