package logger

import (
	"bytes"
	"errors"
	"os"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, verboseMode bool) *bytes.Buffer {
	t.Helper()
	color.NoColor = true
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verboseMode)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stdout)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)
	assert.False(t, IsVerbose())

	SetVerbose(true)
	assert.True(t, IsVerbose())

	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestDebug_WhenVerbose(t *testing.T) {
	buf := capture(t, true)

	Debug("test message %s", "arg")

	assert.Equal(t, "🔍 test message arg\n", buf.String())
}

func TestDebug_WhenNotVerbose(t *testing.T) {
	buf := capture(t, false)

	Debug("test message")

	assert.Zero(t, buf.Len())
}

func TestInfoAlwaysPrints(t *testing.T) {
	buf := capture(t, false)

	Info("indexed %d documents", 42)

	assert.Equal(t, "✅ indexed 42 documents\n", buf.String())
}

func TestWarn(t *testing.T) {
	buf := capture(t, false)

	Warn("image on page %d skipped", 3)

	assert.Equal(t, "⚠️ image on page 3 skipped\n", buf.String())
}

func TestErrorWithHints(t *testing.T) {
	buf := capture(t, false)

	Error(errors.New("connection refused"), "$ ollama serve", "$ ollama pull llama3")

	assert.Equal(t, "😡 connection refused\n   $ ollama serve\n   $ ollama pull llama3\n", buf.String())
}

func TestSection(t *testing.T) {
	buf := capture(t, false)

	Section("Final RAG Answer")

	assert.Equal(t, "\n### Final RAG Answer ###\n", buf.String())
}

func TestOutput(t *testing.T) {
	buf := capture(t, false)
	assert.Same(t, buf, Output())
}
