// Package torrent emits the .torrent metainfo and magnet URI of a
// packaged book archive.
package torrent

import (
	"crypto/sha1"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/zeebo/bencode"
)

// pieceLength is the SHA1 piece size of emitted torrents.
const pieceLength = 256 * 1024

// ErrNoArchives reports an EmitAll over a directory with nothing to cover.
var ErrNoArchives = errors.New("no archives")

type metaInfo struct {
	Announce     string   `bencode:"announce"`
	CreatedBy    string   `bencode:"created by"`
	CreationDate int64    `bencode:"creation date"`
	Info         fileInfo `bencode:"info"`
}

type fileInfo struct {
	Name        string `bencode:"name"`
	Length      int64  `bencode:"length"`
	PieceLength int64  `bencode:"piece length"`
	Pieces      []byte `bencode:"pieces"`
}

// Emit writes a single-file .torrent for the archive at src and returns
// the archive's tiger tree hash for magnet derivation.
func Emit(src, dst, announce, name string) (string, error) {
	fd, err := os.Open(src)
	if err != nil {
		return "", errors.Wrapf(err, "unable to open archive %s", src)
	}
	defer fd.Close()

	stat, err := fd.Stat()
	if err != nil {
		return "", errors.Wrap(err, "unable to stat archive")
	}

	pieces, err := hashPieces(fd)
	if err != nil {
		return "", err
	}

	meta := metaInfo{
		Announce:     announce,
		CreatedBy:    "zco-mx",
		CreationDate: time.Now().Unix(),
		Info: fileInfo{
			Name:        name,
			Length:      stat.Size(),
			PieceLength: pieceLength,
			Pieces:      pieces,
		},
	}

	out, err := os.Create(dst)
	if err != nil {
		return "", errors.Wrapf(err, "unable to create torrent %s", dst)
	}
	defer out.Close()

	if err := bencode.NewEncoder(out).Encode(meta); err != nil {
		return "", errors.Wrap(err, "unable to encode metainfo")
	}

	return TTHFile(src)
}

type multiMetaInfo struct {
	Announce     string        `bencode:"announce"`
	CreatedBy    string        `bencode:"created by"`
	CreationDate int64         `bencode:"creation date"`
	Info         multiFileInfo `bencode:"info"`
}

type multiFileInfo struct {
	Name        string      `bencode:"name"`
	PieceLength int64       `bencode:"piece length"`
	Pieces      []byte      `bencode:"pieces"`
	Files       []fileEntry `bencode:"files"`
}

type fileEntry struct {
	Length int64    `bencode:"length"`
	Path   []string `bencode:"path"`
}

// EmitAll writes a multi-file .torrent covering every cbz archive under
// dir, sorted by filename. Pieces are hashed over the concatenation of
// the archives, per the metainfo spec.
func EmitAll(dir, dst, announce, name string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return errors.Wrapf(err, "unable to read %s", dir)
	}
	var archives []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".cbz") {
			archives = append(archives, entry.Name())
		}
	}
	if len(archives) == 0 {
		return errors.Wrapf(ErrNoArchives, "under %s", dir)
	}
	sort.Strings(archives)

	files := make([]fileEntry, 0, len(archives))
	readers := make([]io.Reader, 0, len(archives))
	for _, archive := range archives {
		fd, err := os.Open(filepath.Join(dir, archive))
		if err != nil {
			return errors.Wrapf(err, "unable to open archive %s", archive)
		}
		defer fd.Close()
		stat, err := fd.Stat()
		if err != nil {
			return errors.Wrap(err, "unable to stat archive")
		}
		files = append(files, fileEntry{Length: stat.Size(), Path: []string{archive}})
		readers = append(readers, fd)
	}

	pieces, err := hashPieces(io.MultiReader(readers...))
	if err != nil {
		return err
	}

	meta := multiMetaInfo{
		Announce:     announce,
		CreatedBy:    "zco-mx",
		CreationDate: time.Now().Unix(),
		Info: multiFileInfo{
			Name:        name,
			PieceLength: pieceLength,
			Pieces:      pieces,
			Files:       files,
		},
	}

	out, err := os.Create(dst)
	if err != nil {
		return errors.Wrapf(err, "unable to create torrent %s", dst)
	}
	defer out.Close()
	return errors.Wrap(bencode.NewEncoder(out).Encode(meta), "unable to encode metainfo")
}

func hashPieces(r io.Reader) ([]byte, error) {
	pieces := make([]byte, 0)
	buf := make([]byte, pieceLength)
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			sum := sha1.Sum(buf[:n])
			pieces = append(pieces, sum[:]...)
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return pieces, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "unable to read archive")
		}
	}
}

// Magnet builds the magnet URI of an archive from its tiger tree hash,
// size and display name. No re-read of the archive is needed.
func Magnet(tthsum string, size int64, filename string) string {
	return fmt.Sprintf("magnet:?xt=urn:tree:tiger:%s&xl=%d&dn=%s",
		tthsum, size, url.QueryEscape(filename))
}
