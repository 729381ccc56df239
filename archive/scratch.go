package archive

import (
	"os"

	"github.com/pkg/errors"
)

// Scratch is a per-job scratch directory. Callers defer Close so the
// directory is released on every exit path.
type Scratch struct {
	Dir string
}

func NewScratch(root, prefix string) (*Scratch, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrap(err, "unable to create tmp root")
	}
	dir, err := os.MkdirTemp(root, prefix)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create scratch dir")
	}
	return &Scratch{Dir: dir}, nil
}

func (s *Scratch) Close() error {
	return os.RemoveAll(s.Dir)
}
