//go:build !unix && !windows

package util

var transientErrnos []error
