package pullers

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/morikuni/failure/v2"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/pkg/logger"
)

type SFTPOptions struct {
	ParseSettings `mapstructure:",squash"`

	Host           string `mapstructure:"host" validate:"required"`
	Port           int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User           string `mapstructure:"username" validate:"required"`
	Password       string `mapstructure:"password" validate:"required_without=PrivateKeyFile"`
	PrivateKeyFile string `mapstructure:"private_key_file"`
	KnownHostsFile string `mapstructure:"known_hosts_file"`
}

// Расширения, которые берём из каталога на сервере поставщика.
var remoteExtensions = []string{".csv", ".json", ".tsv", ".txt"}

type sftpConnector func(ctx context.Context, opts SFTPOptions, budget time.Duration) (*sftp.Client, io.Closer, error)

// SFTPPuller скачивает файл с сервера поставщика. Если Path: каталог,
// берётся первый по имени файл с подходящим расширением.
type SFTPPuller struct {
	connect sftpConnector
	log     logger.Logger
}

func NewSFTPPuller(log logger.Logger) *SFTPPuller {
	return &SFTPPuller{connect: dialSFTP, log: logger.OrDiscard(log)}
}

func (p *SFTPPuller) PerformPull(ctx context.Context, source acquisition.RemoteSource, budget time.Duration) (*acquisition.Payload, error) {
	var opts SFTPOptions
	if err := decodeOptions(source, &opts); err != nil {
		return nil, err
	}
	parse, err := parseOptions(source, opts.ParseSettings)
	if err != nil {
		return nil, err
	}

	var remotePath string
	var body []byte
	err = p.session(ctx, opts, budget, func(client *sftp.Client) error {
		var ferr error
		remotePath, body, ferr = fetchRemote(client, orDefault(source.Path, "."))
		return ferr
	})
	if err != nil {
		return nil, err
	}
	p.log.Log("Downloaded %s from %s (%d bytes)", remotePath, opts.Host, len(body))
	return payloadFor(parse, body, path.Base(remotePath), remotePath), nil
}

// TestConnection подключается к серверу и проверяет, что Path существует.
func (p *SFTPPuller) TestConnection(ctx context.Context, source acquisition.RemoteSource, budget time.Duration) error {
	var opts SFTPOptions
	if err := decodeOptions(source, &opts); err != nil {
		return err
	}
	if _, err := parseOptions(source, opts.ParseSettings); err != nil {
		return err
	}

	remotePath := orDefault(source.Path, ".")
	err := p.session(ctx, opts, budget, func(client *sftp.Client) error {
		if _, err := client.Stat(remotePath); err != nil {
			return transportError(fmt.Sprintf("path %s is not accessible", remotePath), err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	p.log.Log("Connection to %s OK, %s exists", opts.Host, remotePath)
	return nil
}

// session открывает sftp-сессию на время fn.
func (p *SFTPPuller) session(ctx context.Context, opts SFTPOptions, budget time.Duration, fn func(client *sftp.Client) error) error {
	client, conn, err := p.connect(ctx, opts, budget)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	// сначала транспорт: sftp.Client.Close ждёт завершения чтения из него
	defer client.Close()
	defer conn.Close()

	// соединение закрывается при отмене, чтобы прервать зависшее чтение
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	if err := fn(client); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func fetchRemote(client *sftp.Client, remotePath string) (string, []byte, error) {
	info, err := client.Stat(remotePath)
	if err != nil {
		return "", nil, transportError(fmt.Sprintf("failed to stat %s", remotePath), err)
	}

	if info.IsDir() {
		entries, err := client.ReadDir(remotePath)
		if err != nil {
			return "", nil, transportError(fmt.Sprintf("failed to list %s", remotePath), err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && hasExtension(e.Name(), remoteExtensions) {
				names = append(names, e.Name())
			}
		}
		if len(names) == 0 {
			return "", nil, failure.New(acquisition.ErrInvalidSource,
				failure.Message(fmt.Sprintf("no CSV or JSON files found in %s", remotePath)),
			)
		}
		sort.Strings(names)
		remotePath = path.Join(remotePath, names[0])
	}

	f, err := client.Open(remotePath)
	if err != nil {
		return "", nil, transportError(fmt.Sprintf("failed to open %s", remotePath), err)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxBodySize))
	if err != nil {
		return "", nil, transportError(fmt.Sprintf("failed to download %s", remotePath), err)
	}
	return remotePath, body, nil
}

func dialSFTP(ctx context.Context, opts SFTPOptions, budget time.Duration) (*sftp.Client, io.Closer, error) {
	config, err := sshConfig(opts, budget)
	if err != nil {
		return nil, nil, err
	}

	port := opts.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(port))

	dialer := net.Dialer{Timeout: budget}
	netConn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, nil, transportError("failed to connect to "+addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(netConn, addr, config)
	if err != nil {
		netConn.Close()
		if strings.Contains(err.Error(), "unable to authenticate") {
			return nil, nil, failure.Wrap(err, failure.WithCode(acquisition.ErrAuthFailure),
				failure.Message("ssh authentication failed for "+opts.User+"@"+addr),
			)
		}
		return nil, nil, transportError("ssh handshake with "+addr+" failed", err)
	}
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	client, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, nil, transportError("failed to start sftp session", err)
	}
	return client, sshClient, nil
}

func sshConfig(opts SFTPOptions, budget time.Duration) (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if opts.PrivateKeyFile != "" {
		key, err := os.ReadFile(opts.PrivateKeyFile)
		if err != nil {
			return nil, invalidSFTP("failed to read private key", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, invalidSFTP("failed to parse private key", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if opts.Password != "" {
		auth = append(auth, ssh.Password(opts.Password))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if opts.KnownHostsFile != "" {
		cb, err := knownhosts.New(opts.KnownHostsFile)
		if err != nil {
			return nil, invalidSFTP("failed to load known_hosts", err)
		}
		hostKeyCallback = cb
	}

	return &ssh.ClientConfig{
		User:            opts.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         budget,
	}, nil
}

func transportError(msg string, err error) error {
	return failure.Wrap(err, failure.WithCode(acquisition.ErrTransportFailure),
		failure.Message(msg+": "+err.Error()),
	)
}

func invalidSFTP(msg string, err error) error {
	return failure.Wrap(err, failure.WithCode(acquisition.ErrInvalidSource),
		failure.Message(msg+": "+err.Error()),
	)
}

func hasExtension(name string, allowed []string) bool {
	ext := strings.ToLower(path.Ext(name))
	for _, a := range allowed {
		if ext == a {
			return true
		}
	}
	return false
}
