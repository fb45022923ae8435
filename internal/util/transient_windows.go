//go:build windows

package util

import "golang.org/x/sys/windows"

var transientErrnos = []error{
	windows.ERROR_SHARING_VIOLATION,
	windows.ERROR_LOCK_VIOLATION,
	windows.ERROR_NETNAME_DELETED,
	windows.ERROR_UNEXP_NET_ERR,
	windows.WSAECONNRESET,
}
