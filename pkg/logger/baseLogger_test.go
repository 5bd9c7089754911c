package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaseLogger_PrefixAndFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "[Pull]")

	l.Log("attempt %d of %d", 1, 3)

	assert.Equal(t, "[Pull] attempt 1 of 3\n", buf.String())
}

func TestBaseLogger_PercentInPrefixIsNotAFormatVerb(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, "[100%]")

	l.Log("done")

	assert.Equal(t, "[100%] done\n", buf.String())
}

func TestBaseLogger_WithPrefix(t *testing.T) {
	var buf bytes.Buffer
	base := NewWriterLogger(&buf, "[App]")
	child := base.WithPrefix("[TokenCache]")

	child.Log("refreshed")
	base.Log("started")

	assert.Equal(t, "[App] [TokenCache] refreshed\n[App] started\n", buf.String())
}

func TestBaseLogger_SetWriterAndPrefix(t *testing.T) {
	var first, second bytes.Buffer
	l := NewWriterLogger(&first, "")

	l.Log("one")
	l.SetWriter(&second)
	l.SetPrefix("[X]")
	l.Log("two\n")

	assert.Equal(t, "one\n", first.String())
	assert.Equal(t, "[X] two\n", second.String())
}

func TestOrDiscard(t *testing.T) {
	assert.Equal(t, Discard, OrDiscard(nil))

	l := NewWriterLogger(&bytes.Buffer{}, "")
	assert.Same(t, l, OrDiscard(l))
}
