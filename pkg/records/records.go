// Package records разбирает выгруженные у поставщика файлы в таблицу записей.
package records

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samber/lo"

	"gomarket_mdm/pkg/records/converters"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var ErrUnsupportedFormat = errors.New("unsupported file format")

// Record: одна строка выгрузки: колонка -> значение.
type Record map[string]any

// Table: разобранная выгрузка. Records содержит не больше Limit строк, Total считает все.
type Table struct {
	Columns []string
	Records []Record
	Total   int
}

// Column возвращает значения колонки по всем записям образца.
func (t *Table) Column(name string) []any {
	return lo.Map(t.Records, func(r Record, _ int) any {
		return r[name]
	})
}

type Options struct {
	Format    Format
	Filename  string
	Delimiter rune
	Encoding  string
	// NoHeader: первая строка CSV: данные, колонки получают имена column_N.
	NoHeader   bool
	Limit      int
	Converters map[string]converters.ColumnConverter
}

// Parse определяет формат и разбирает тело выгрузки.
func Parse(body []byte, opts Options) (*Table, error) {
	format, err := DetectFormat(body, opts.Filename, opts.Format)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		p := NewProcessor(nil).
			SetDelimiter(opts.Delimiter).
			SetHeader(!opts.NoHeader).
			SetLimit(opts.Limit).
			SetNewConverters(opts.Converters)
		if _, err := p.SetEncoding(opts.Encoding); err != nil {
			return nil, err
		}
		return p.ProcessCSV(bytes.NewReader(body))
	case FormatJSON:
		return ParseJSON(body, opts.Limit)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// DetectFormat: явный формат, затем расширение файла, затем содержимое.
func DetectFormat(body []byte, filename string, explicit Format) (Format, error) {
	if explicit != "" {
		switch Format(strings.ToLower(string(explicit))) {
		case FormatCSV, "tsv", "txt":
			return FormatCSV, nil
		case FormatJSON:
			return FormatJSON, nil
		}
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, explicit)
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv", ".tsv", ".txt":
		return FormatCSV, nil
	case ".json":
		return FormatJSON, nil
	case ".xlsx", ".xls":
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}

	return sniff(body)
}

func sniff(body []byte) (Format, error) {
	if bytes.HasPrefix(body, []byte("PK\x03\x04")) {
		return "", fmt.Errorf("%w: zip container (xlsx?)", ErrUnsupportedFormat)
	}
	trimmed := bytes.TrimSpace(bytes.TrimPrefix(body, utf8BOM))
	if len(trimmed) == 0 {
		return "", errors.New("empty payload")
	}
	switch trimmed[0] {
	case '[', '{':
		return FormatJSON, nil
	}
	if bytes.IndexByte(trimmed, 0) >= 0 {
		return "", fmt.Errorf("%w: binary content", ErrUnsupportedFormat)
	}
	return FormatCSV, nil
}

// appendColumn добавляет колонку, сохраняя порядок первого появления.
func appendColumn(columns []string, seen map[string]struct{}, name string) []string {
	if _, ok := seen[name]; ok {
		return columns
	}
	seen[name] = struct{}{}
	return append(columns, name)
}
