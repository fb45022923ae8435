package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strconv"

	"github.com/nclack/mirror/internal/eventloop"
	"github.com/nclack/mirror/internal/logger"
	"github.com/nclack/mirror/internal/retry"

	"go.uber.org/zap"
)

type Policy string

const (
	// PolicyHash compares SHA-256 digests of the full content.
	PolicyHash Policy = "hash"
	// PolicySize compares byte length only. Equal-length files with
	// different content compare as matching.
	PolicySize Policy = "size"
)

// ErrVanished means one side no longer exists, so the pair cannot be compared.
var ErrVanished = errors.New("file vanished before comparison")

type Result struct {
	Match bool
	A     string
	B     string
	Err   error
}

// Comparator fingerprints files off the event loop and joins the two sides back on it.
type Comparator struct {
	loop   *eventloop.Loop
	policy Policy
	retry  retry.Policy
}

func NewComparator(loop *eventloop.Loop, policy Policy, rp retry.Policy) *Comparator {
	return &Comparator{loop: loop, policy: policy, retry: rp}
}

func (c *Comparator) Policy() Policy {
	return c.policy
}

// Begin starts a comparison. onDone runs once on the loop after both sides resolve.
// Begin, SideA and SideB must be called from the loop goroutine.
func (c *Comparator) Begin(onDone func(Result)) *Comparison {
	return &Comparison{c: c, onDone: onDone}
}

type side struct {
	started  bool
	resolved bool
	path     string
	sum      string
	err      error
}

type Comparison struct {
	c      *Comparator
	a, b   side
	fired  bool
	onDone func(Result)
}

func (cmp *Comparison) SideA(path string) *Comparison {
	cmp.start(&cmp.a, path)
	return cmp
}

func (cmp *Comparison) SideB(path string) *Comparison {
	cmp.start(&cmp.b, path)
	return cmp
}

func (cmp *Comparison) start(s *side, path string) {
	if s.started {
		return
	}
	s.started = true
	s.path = path
	cmp.resolve(s, cmp.c.retry.Begin())
}

type fingerprint struct {
	sum string
	err error
}

func (cmp *Comparison) resolve(s *side, attempt *retry.Attempt) {
	eventloop.Async(cmp.c.loop, func() fingerprint {
		sum, err := cmp.c.fingerprint(s.path)
		return fingerprint{sum: sum, err: err}
	}, func(fp fingerprint) {
		if fp.err != nil && !errors.Is(fp.err, fs.ErrNotExist) {
			if delay, ok := attempt.Fail(); ok {
				log := logger.Log.Debug
				if attempt.Escalate() {
					log = logger.Log.Warn
				}
				log("cannot read file for comparison, retrying",
					zap.String("path", s.path),
					zap.Int("attempt", attempt.Count),
					zap.Duration("elapsed", attempt.Elapsed()),
					zap.Error(fp.err))
				cmp.c.loop.After(delay, func() { cmp.resolve(s, attempt) })
				return
			}
		}

		s.resolved = true
		s.sum = fp.sum
		s.err = fp.err
		if errors.Is(fp.err, fs.ErrNotExist) {
			s.err = fmt.Errorf("%w: %s", ErrVanished, s.path)
		}

		cmp.maybeFire()
	})
}

func (cmp *Comparison) maybeFire() {
	if cmp.fired || !cmp.a.resolved || !cmp.b.resolved {
		return
	}
	cmp.fired = true

	res := Result{A: cmp.a.sum, B: cmp.b.sum}
	switch {
	case cmp.a.err != nil:
		res.Err = cmp.a.err
	case cmp.b.err != nil:
		res.Err = cmp.b.err
	default:
		res.Match = cmp.a.sum == cmp.b.sum
	}

	cmp.onDone(res)
}

func (c *Comparator) fingerprint(path string) (string, error) {
	if c.policy == PolicySize {
		info, err := os.Stat(path)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(info.Size(), 10), nil
	}

	return checksum(path)
}

func checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}

	defer func(f *os.File) {
		_ = f.Close()
	}(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
