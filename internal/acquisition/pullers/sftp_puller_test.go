package pullers

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/pkg/sftp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gomarket_mdm/internal/acquisition"
)

type pipeConn struct {
	io.Reader
	io.WriteCloser
}

// memSFTP: sftp-сервер в памяти. close рвёт оба направления канала,
// иначе sftp.Client.Close ждёт приёмник вечно.
type memSFTP struct {
	client *sftp.Client
	once   sync.Once
	close  func()
}

func (m *memSFTP) Close() error {
	m.once.Do(m.close)
	return nil
}

// newMemSFTP поднимает sftp-сервер в памяти с заданными файлами.
func newMemSFTP(t *testing.T, files map[string]string) *memSFTP {
	t.Helper()
	c2sR, c2sW := io.Pipe()
	s2cR, s2cW := io.Pipe()

	server := sftp.NewRequestServer(pipeConn{c2sR, s2cW}, sftp.InMemHandler())
	go server.Serve()

	client, err := sftp.NewClientPipe(s2cR, c2sW)
	require.NoError(t, err)

	m := &memSFTP{client: client, close: func() {
		server.Close()
		s2cW.Close()
		c2sW.Close()
	}}
	t.Cleanup(func() { m.Close() })

	require.NoError(t, client.MkdirAll("/feeds"))
	for name, body := range files {
		f, err := client.Create(name)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	return m
}

func memConnector(m *memSFTP) sftpConnector {
	return func(context.Context, SFTPOptions, time.Duration) (*sftp.Client, io.Closer, error) {
		return m.client, m, nil
	}
}

func refusingConnector(t *testing.T) sftpConnector {
	return func(context.Context, SFTPOptions, time.Duration) (*sftp.Client, io.Closer, error) {
		t.Error("connector must not be called")
		return nil, nil, errors.New("must not dial")
	}
}

var sftpOptions = map[string]any{"host": "ftp.cwr.example", "username": "feed", "password": "pw"}

func TestSFTPPuller_PicksFirstDataFileInDirectory(t *testing.T) {
	m := newMemSFTP(t, map[string]string{
		"/feeds/readme.md":   "ignore me",
		"/feeds/b_items.csv": "sku\nB\n",
		"/feeds/a_items.csv": "sku\nA\n",
	})
	p := NewSFTPPuller(nil)
	p.connect = memConnector(m)

	source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/feeds", Options: sftpOptions}
	payload, err := p.PerformPull(context.Background(), source, time.Second)
	require.NoError(t, err)

	assert.Equal(t, "a_items.csv", payload.Filename)
	assert.Equal(t, "/feeds/a_items.csv", payload.SourcePath)
	assert.Equal(t, "sku\nA\n", string(payload.Body))
}

func TestSFTPPuller_ExplicitFile(t *testing.T) {
	m := newMemSFTP(t, map[string]string{"/feeds/catalog.json": `[{"sku":"A"}]`})
	p := NewSFTPPuller(nil)
	p.connect = memConnector(m)

	source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/feeds/catalog.json", Options: sftpOptions}
	payload, err := p.PerformPull(context.Background(), source, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "catalog.json", payload.Filename)
}

func TestSFTPPuller_EmptyDirectory(t *testing.T) {
	m := newMemSFTP(t, map[string]string{"/feeds/notes.md": "x"})
	p := NewSFTPPuller(nil)
	p.connect = memConnector(m)

	source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/feeds", Options: sftpOptions}
	_, err := p.PerformPull(context.Background(), source, time.Second)
	require.Error(t, err)
	assert.True(t, failure.Is(err, acquisition.ErrInvalidSource))
}

func TestSFTPPuller_MissingPathIsTransportFailure(t *testing.T) {
	m := newMemSFTP(t, nil)
	p := NewSFTPPuller(nil)
	p.connect = memConnector(m)

	source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/nope", Options: sftpOptions}
	_, err := p.PerformPull(context.Background(), source, time.Second)
	require.Error(t, err)
	assert.True(t, failure.Is(err, acquisition.ErrTransportFailure))
}

func TestSFTPPuller_OptionValidation(t *testing.T) {
	p := NewSFTPPuller(nil)
	p.connect = refusingConnector(t)

	source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/feeds", Options: map[string]any{"host": "h"}}
	_, err := p.PerformPull(context.Background(), source, time.Second)
	require.Error(t, err)
	assert.True(t, failure.Is(err, acquisition.ErrInvalidSource))
}

func TestSFTPPuller_BadParseSettingsRejectedBeforeConnect(t *testing.T) {
	tests := []struct {
		name    string
		options map[string]any
	}{
		{"multi-char delimiter", map[string]any{"delimiter": ";;"}},
		{"unknown column type", map[string]any{"column_types": map[string]any{"price": "money"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewSFTPPuller(nil)
			p.connect = refusingConnector(t)

			options := map[string]any{}
			for k, v := range sftpOptions {
				options[k] = v
			}
			for k, v := range tt.options {
				options[k] = v
			}
			source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/feeds", Options: options}
			_, err := p.PerformPull(context.Background(), source, time.Second)
			require.Error(t, err)
			assert.True(t, failure.Is(err, acquisition.ErrInvalidSource), err.Error())
		})
	}
}

func TestSFTPPuller_ClosesConnectionAfterPull(t *testing.T) {
	m := newMemSFTP(t, map[string]string{"/feeds/items.csv": "sku\nA\n"})
	p := NewSFTPPuller(nil)
	p.connect = memConnector(m)

	source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/feeds", Options: sftpOptions}
	done := make(chan error, 1)
	go func() {
		_, err := p.PerformPull(context.Background(), source, time.Second)
		done <- err
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("pull did not return after closing the sftp session")
	}
}

func TestSSHConfig_KeyAndKnownHosts(t *testing.T) {
	_, err := sshConfig(SFTPOptions{User: "u", PrivateKeyFile: "/does/not/exist"}, time.Second)
	assert.True(t, failure.Is(err, acquisition.ErrInvalidSource))

	cfg, err := sshConfig(SFTPOptions{User: "u", Password: "pw"}, time.Second)
	require.NoError(t, err)
	assert.Len(t, cfg.Auth, 1)
	assert.Equal(t, time.Second, cfg.Timeout)
}

func TestSFTPPuller_TestConnection(t *testing.T) {
	m := newMemSFTP(t, map[string]string{"/feeds/items.csv": "sku\nA\n"})
	p := NewSFTPPuller(nil)
	p.connect = memConnector(m)

	source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/feeds", Options: sftpOptions}
	assert.NoError(t, p.TestConnection(context.Background(), source, time.Second))
}

func TestSFTPPuller_TestConnectionMissingPath(t *testing.T) {
	m := newMemSFTP(t, nil)
	p := NewSFTPPuller(nil)
	p.connect = memConnector(m)

	source := acquisition.RemoteSource{ID: "s", Kind: acquisition.KindSFTP, Path: "/nope", Options: sftpOptions}
	err := p.TestConnection(context.Background(), source, time.Second)
	require.Error(t, err)
	assert.True(t, failure.Is(err, acquisition.ErrTransportFailure))
}
