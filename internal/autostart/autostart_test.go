package autostart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandLine_QuotesEveryWord(t *testing.T) {
	got := commandLine("/usr/local/bin/mirror", []string{"/mnt/camera card", "/data/raw"})
	assert.Equal(t, `"/usr/local/bin/mirror" "/mnt/camera card" "/data/raw"`, got)
}

func TestCommandLine_EscapesQuotes(t *testing.T) {
	got := commandLine("mirror", []string{`a"b`})
	assert.Equal(t, `"mirror" "a\"b"`, got)
}

func TestRenderUnit(t *testing.T) {
	unit, err := renderUnit("/usr/bin/mirror", []string{"/src", "/dst"})
	require.NoError(t, err)

	assert.Contains(t, string(unit), "[Service]\n")
	assert.Contains(t, string(unit), `ExecStart="/usr/bin/mirror" "/src" "/dst"`)
	assert.Contains(t, string(unit), "WantedBy=default.target")
}

func TestUnsupportedAutoStarter(t *testing.T) {
	u := &UnsupportedAutoStarter{}
	require.NoError(t, u.Install("mirror", "/a", "/b"))
	installed, err := u.IsInstalled()
	require.NoError(t, err)
	assert.False(t, installed)
}

func TestTaskArgs(t *testing.T) {
	got := taskArgs(`C:\bin\mirror.exe`, []string{`D:\DCIM`, `E:\archive`})

	assert.Equal(t, []string{"/Create",
		"/TN", "MirrorDaemon",
		"/TR", `"C:\bin\mirror.exe" "D:\DCIM" "E:\archive"`,
		"/SC", "ONLOGON",
		"/F"}, got)
}
