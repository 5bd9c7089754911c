package pullers

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_mdm/internal/acquisition"
)

func writeFile(t *testing.T, dir, name, body string, mod time.Time) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	require.NoError(t, os.Chtimes(p, mod, mod))
	return p
}

func TestFilePuller_PicksNewestUploadForSource(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	writeFile(t, dir, "src1_old.csv", "sku\nOLD\n", now.Add(-time.Hour))
	writeFile(t, dir, "src1_new.csv", "sku\nNEW\n", now)
	writeFile(t, dir, "src2_other.csv", "sku\nOTHER\n", now.Add(time.Hour))
	writeFile(t, dir, "src1_notes.md", "ignored", now.Add(time.Hour))

	source := acquisition.RemoteSource{ID: "src1", Kind: acquisition.KindFile}
	payload, err := NewFilePuller(dir, nil).PerformPull(context.Background(), source, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "src1_new.csv", payload.Filename)
	assert.Equal(t, "sku\nNEW\n", string(payload.Body))
}

func TestFilePuller_ExplicitPathAndParseSettings(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "feed.txt", "a|b\n1|2\n", time.Now())

	source := acquisition.RemoteSource{ID: "x", Kind: acquisition.KindFile, Path: p, Options: map[string]any{
		"delimiter":  "|",
		"has_header": "false",
		"encoding":   "windows-1251",
	}}
	payload, err := NewFilePuller("/nonexistent", nil).PerformPull(context.Background(), source, time.Second)
	require.NoError(t, err)

	assert.Equal(t, '|', payload.Parse.Delimiter)
	assert.True(t, payload.Parse.NoHeader)
	assert.Equal(t, "windows-1251", payload.Parse.Encoding)
	assert.Equal(t, p, payload.SourcePath)
}

func TestFilePuller_NothingUploaded(t *testing.T) {
	source := acquisition.RemoteSource{ID: "ghost", Kind: acquisition.KindFile}
	_, err := NewFilePuller(t.TempDir(), nil).PerformPull(context.Background(), source, time.Second)
	require.Error(t, err)
	assert.True(t, failure.Is(err, acquisition.ErrInvalidSource))
	assert.False(t, acquisition.Retryable(err))
}

func TestFilePuller_XLSXIsMalformedThroughController(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s_catalog.xlsx", "PK\x03\x04binary", time.Now())

	c := acquisition.NewController(NewFilePuller(dir, nil), nil, nil)
	outcome := c.Pull(context.Background(), acquisition.RemoteSource{ID: "s", Kind: acquisition.KindFile}, acquisition.Options{Retries: 3})

	assert.False(t, outcome.Success)
	assert.Equal(t, acquisition.ErrMalformedResponse, outcome.ErrorCode)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Contains(t, outcome.Message, "unsupported file format")
}

func TestFilePuller_TestConnection(t *testing.T) {
	dir := t.TempDir()
	csv := writeFile(t, dir, "feed.csv", "sku\nA\n", time.Now())
	pdf := writeFile(t, dir, "feed.pdf", "%PDF", time.Now())
	p := NewFilePuller(dir, nil)

	assert.NoError(t, p.TestConnection(context.Background(), acquisition.RemoteSource{ID: "x", Kind: acquisition.KindFile, Path: csv}, time.Second))

	err := p.TestConnection(context.Background(), acquisition.RemoteSource{ID: "x", Kind: acquisition.KindFile, Path: pdf}, time.Second)
	assert.True(t, failure.Is(err, acquisition.ErrInvalidSource))

	err = p.TestConnection(context.Background(), acquisition.RemoteSource{ID: "ghost", Kind: acquisition.KindFile}, time.Second)
	assert.True(t, failure.Is(err, acquisition.ErrInvalidSource))

	bad := acquisition.RemoteSource{ID: "x", Kind: acquisition.KindFile, Path: csv, Options: map[string]any{"delimiter": ";;"}}
	err = p.TestConnection(context.Background(), bad, time.Second)
	assert.True(t, failure.Is(err, acquisition.ErrInvalidSource))
}
