//go:build unix

package util

import (
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestIsTransient_Unix(t *testing.T) {
	busy := &fs.PathError{Op: "open", Path: "/x", Err: unix.EBUSY}
	reset := &fs.PathError{Op: "read", Path: "/mnt/x", Err: unix.ECONNRESET}
	denied := &fs.PathError{Op: "open", Path: "/x", Err: unix.EACCES}

	assert.True(t, IsTransient(busy))
	assert.True(t, IsTransient(reset))
	assert.False(t, IsTransient(denied))
}
