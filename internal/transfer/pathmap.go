package transfer

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/nclack/mirror/internal/util"
)

var (
	ErrOutsideRoot = errors.New("path is outside the source root")
	ErrNestedRoots = errors.New("source and destination trees overlap")
)

// PathMap derives destination paths from source paths. It is a pure function of
// the two roots and the source path.
type PathMap struct {
	SrcRoot string
	DstRoot string
}

func NewPathMap(src, dst string) (PathMap, error) {
	absSrc, err := filepath.Abs(src)
	if err != nil {
		return PathMap{}, fmt.Errorf("invalid src path: %w", err)
	}
	absDst, err := filepath.Abs(dst)
	if err != nil {
		return PathMap{}, fmt.Errorf("invalid dst path: %w", err)
	}

	if util.IsWithin(absSrc, absDst) || util.IsWithin(absDst, absSrc) {
		return PathMap{}, fmt.Errorf("%w: %s and %s", ErrNestedRoots, absSrc, absDst)
	}

	return PathMap{SrcRoot: absSrc, DstRoot: absDst}, nil
}

// Destination returns the root-relative path of src and its mirrored location.
func (m PathMap) Destination(src string) (rel, dst string, err error) {
	rel, err = filepath.Rel(m.SrcRoot, src)
	if err != nil || !util.IsWithin(m.SrcRoot, src) || rel == "." {
		return "", "", fmt.Errorf("%w: %s", ErrOutsideRoot, src)
	}

	return rel, filepath.Join(m.DstRoot, rel), nil
}
