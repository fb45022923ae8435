//go:build unix

package util

import "golang.org/x/sys/unix"

var transientErrnos = []error{
	unix.EBUSY,
	unix.ETXTBSY,
	unix.EAGAIN,
	unix.ECONNRESET,
	unix.ETIMEDOUT,
}
