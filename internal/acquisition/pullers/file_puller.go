package pullers

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/morikuni/failure/v2"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/pkg/logger"
)

type FileOptions struct {
	ParseSettings `mapstructure:",squash"`

	Dir string `mapstructure:"dir"`
}

// Загруженные файлы; xlsx принимаем, чтобы вернуть понятную ошибку разбора.
var uploadExtensions = []string{".csv", ".json", ".tsv", ".txt", ".xlsx", ".xls"}

// FilePuller читает загруженный пользователем файл: сам Path, если это файл,
// либо самый свежий файл "<id>_*" в каталоге загрузок.
type FilePuller struct {
	uploadDir string
	log       logger.Logger
}

func NewFilePuller(uploadDir string, log logger.Logger) *FilePuller {
	return &FilePuller{uploadDir: uploadDir, log: logger.OrDiscard(log)}
}

func (p *FilePuller) PerformPull(ctx context.Context, source acquisition.RemoteSource, _ time.Duration) (*acquisition.Payload, error) {
	var opts FileOptions
	if err := decodeOptions(source, &opts); err != nil {
		return nil, err
	}
	parse, err := parseOptions(source, opts.ParseSettings)
	if err != nil {
		return nil, err
	}

	filePath, err := p.locate(source, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, failure.Wrap(err, failure.WithCode(acquisition.ErrInvalidSource),
			failure.Message(fmt.Sprintf("failed to open uploaded file %s", filepath.Base(filePath))),
		)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, maxBodySize))
	if err != nil {
		return nil, failure.Wrap(err, failure.WithCode(acquisition.ErrTransportFailure),
			failure.Message("failed to read uploaded file: "+err.Error()),
		)
	}
	p.log.Log("Read uploaded file %s (%d bytes)", filePath, len(body))
	return payloadFor(parse, body, filepath.Base(filePath), filePath), nil
}

// TestConnection проверяет, что загруженный файл есть и его тип поддерживается.
func (p *FilePuller) TestConnection(_ context.Context, source acquisition.RemoteSource, _ time.Duration) error {
	var opts FileOptions
	if err := decodeOptions(source, &opts); err != nil {
		return err
	}
	if _, err := parseOptions(source, opts.ParseSettings); err != nil {
		return err
	}
	filePath, err := p.locate(source, opts)
	if err != nil {
		return err
	}
	p.log.Log("Uploaded file %s is available", filePath)
	return nil
}

func (p *FilePuller) locate(source acquisition.RemoteSource, opts FileOptions) (string, error) {
	if source.Path != "" {
		if info, err := os.Stat(source.Path); err == nil && !info.IsDir() {
			if !hasExtension(source.Path, uploadExtensions) {
				return "", failure.New(acquisition.ErrInvalidSource,
					failure.Message(fmt.Sprintf("unsupported file type %s", filepath.Ext(source.Path))),
				)
			}
			return source.Path, nil
		}
	}

	dir := opts.Dir
	if dir == "" {
		dir = p.uploadDir
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", failure.Wrap(err, failure.WithCode(acquisition.ErrInvalidSource),
			failure.Message(fmt.Sprintf("upload directory %s is not readable", dir)),
		)
	}

	prefix := source.ID + "_"
	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) || !hasExtension(e.Name(), uploadExtensions) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = e.Name(), info.ModTime()
		}
	}
	if newest == "" {
		return "", failure.New(acquisition.ErrInvalidSource,
			failure.Message(fmt.Sprintf("no uploaded file found for source %s", source.ID)),
			failure.Context{"dir": dir},
		)
	}
	return filepath.Join(dir, newest), nil
}
