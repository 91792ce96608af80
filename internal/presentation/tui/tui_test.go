package tui

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRenderer_PipedOutputIsPlain(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()

	assert.False(t, IsTerminal(f))
	assert.Equal(t, DefaultWidth, Width(f))

	out, err := NewRenderer(f)("## ✅ Step 1")
	require.NoError(t, err)
	assert.Equal(t, "## ✅ Step 1", out)
}

func TestNewStyledRenderer(t *testing.T) {
	render, err := NewStyledRenderer("notty", 60)
	require.NoError(t, err)

	out, err := render("# Progress\n\n**Command:** `git status`")
	require.NoError(t, err)
	assert.Contains(t, out, "Progress")
	assert.Contains(t, out, "git status")
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "1.0.0")
	assert.Contains(t, buf.String(), "guided workflows v1.0.0")
}
