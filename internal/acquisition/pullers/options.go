// Package pullers содержит реализации acquisition.Puller для HTTP API, SFTP и загруженных файлов.
package pullers

import (
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/morikuni/failure/v2"

	"gomarket_mdm/internal/acquisition"
	"gomarket_mdm/pkg/records"
	"gomarket_mdm/pkg/records/converters"
)

// maxBodySize ограничивает размер скачиваемого образца.
const maxBodySize = 64 << 20

var validate = validator.New()

// ParseSettings: общие для всех источников параметры разбора файла.
type ParseSettings struct {
	Format      string            `mapstructure:"format" validate:"omitempty,oneof=csv tsv txt json"`
	Delimiter   string            `mapstructure:"delimiter"`
	Encoding    string            `mapstructure:"encoding"`
	HasHeader   *bool             `mapstructure:"has_header"`
	ColumnTypes map[string]string `mapstructure:"column_types"`
}

func (s ParseSettings) recordOptions() (records.Options, error) {
	opts := records.Options{
		Format:   records.Format(s.Format),
		Encoding: s.Encoding,
		NoHeader: s.HasHeader != nil && !*s.HasHeader,
	}
	if s.Format == "tsv" && s.Delimiter == "" {
		opts.Delimiter = '\t'
	}
	if s.Delimiter != "" {
		d := s.Delimiter
		if d == `\t` {
			d = "\t"
		}
		if utf8.RuneCountInString(d) != 1 {
			return opts, fmt.Errorf("delimiter must be a single character, got %q", s.Delimiter)
		}
		opts.Delimiter, _ = utf8.DecodeRuneInString(d)
	}
	if len(s.ColumnTypes) > 0 {
		conv, err := converters.ForTypes(s.ColumnTypes)
		if err != nil {
			return opts, err
		}
		opts.Converters = conv
	}
	return opts, nil
}

// decodeOptions раскладывает RemoteSource.Options в структуру настроек и проверяет её.
func decodeOptions(source acquisition.RemoteSource, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(source.Options); err != nil {
		return invalidSource(source, err)
	}
	if err := validate.Struct(out); err != nil {
		return invalidSource(source, err)
	}
	return nil
}

func invalidSource(source acquisition.RemoteSource, err error) error {
	return failure.Wrap(err, failure.WithCode(acquisition.ErrInvalidSource),
		failure.Message(fmt.Sprintf("invalid %s source options: %v", source.Kind, err)),
		failure.Context{"source": source.ID},
	)
}

// parseOptions проверяет настройки разбора до обращения к источнику.
func parseOptions(source acquisition.RemoteSource, settings ParseSettings) (records.Options, error) {
	parse, err := settings.recordOptions()
	if err != nil {
		return parse, invalidSource(source, err)
	}
	return parse, nil
}

// withDetectedFormat подставляет формат, определённый по ответу, если он не задан явно.
func withDetectedFormat(parse records.Options, settings ParseSettings, format string) records.Options {
	if settings.Format != "" || format == "" {
		return parse
	}
	parse.Format = records.Format(format)
	if format == "tsv" && settings.Delimiter == "" {
		parse.Delimiter = '\t'
	}
	return parse
}

func payloadFor(parse records.Options, body []byte, filename, sourcePath string) *acquisition.Payload {
	parse.Filename = filename
	return &acquisition.Payload{
		Body:       body,
		Filename:   filename,
		SourcePath: sourcePath,
		Parse:      parse,
	}
}
