package torrent

import (
	"encoding/base32"
	"io"
	"os"

	"github.com/cxmcc/tiger"
	"github.com/pkg/errors"
)

// THEX tiger-tree hashing: 1024-byte leaves, leaf nodes prefixed 0x00,
// internal nodes 0x01. The root digest is what tthsum prints.
const tthLeafSize = 1024

// TTHFile computes the tiger tree hash of a file, base32 encoded without
// padding, as used in tree:tiger magnet URNs.
func TTHFile(path string) (string, error) {
	fd, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "unable to open %s", path)
	}
	defer fd.Close()
	return tth(fd)
}

func tth(r io.Reader) (string, error) {
	leaves := make([][]byte, 0)
	buf := make([]byte, tthLeafSize)
	read := false
	for {
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			read = true
			leaves = append(leaves, hashNode(0x00, buf[:n]))
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			break
		}
		if err != nil {
			return "", errors.Wrap(err, "unable to read data")
		}
	}
	if !read {
		// Empty input hashes as a single empty leaf.
		leaves = append(leaves, hashNode(0x00, nil))
	}

	for len(leaves) > 1 {
		next := make([][]byte, 0, (len(leaves)+1)/2)
		for i := 0; i < len(leaves); i += 2 {
			if i+1 == len(leaves) {
				// Odd node promotes unchanged.
				next = append(next, leaves[i])
				continue
			}
			next = append(next, hashNode(0x01, append(append([]byte{}, leaves[i]...), leaves[i+1]...)))
		}
		leaves = next
	}

	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(leaves[0]), nil
}

func hashNode(prefix byte, data []byte) []byte {
	h := tiger.New()
	h.Write([]byte{prefix})
	h.Write(data)
	return h.Sum(nil)
}
