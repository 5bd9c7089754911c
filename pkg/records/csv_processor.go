package records

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"gomarket_mdm/pkg/records/converters"
)

var utf8BOM = []byte("\xef\xbb\xbf")

var encodings = map[string]encoding.Encoding{
	"windows-1251": charmap.Windows1251,
	"cp1251":       charmap.Windows1251,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"iso-8859-1":   charmap.ISO8859_1,
	"latin1":       charmap.ISO8859_1,
	"koi8-r":       charmap.KOI8R,
}

// Кандидаты для автоопределения разделителя по первой строке.
var delimiterCandidates = []rune{',', ';', '\t', '|'}

// Processor отвечает за чтение CSV данных в таблицу записей.
type Processor struct {
	columns          []string
	columnConverters map[string]converters.ColumnConverter
	decoder          encoding.Encoding
	delimiter        rune
	header           bool
	limit            int
}

// NewProcessor создаёт новый Processor. columns используются как имена колонок,
// если в файле нет заголовка.
func NewProcessor(columns []string) *Processor {
	return &Processor{
		columns:          columns,
		columnConverters: map[string]converters.ColumnConverter{},
		header:           true,
	}
}

func (p *Processor) SetNewColumnNaming(columns []string) *Processor {
	if len(columns) == 0 {
		return p
	}
	p.columns = columns
	return p
}

func (p *Processor) SetNewConverters(converters map[string]converters.ColumnConverter) *Processor {
	if len(converters) == 0 {
		return p
	}
	p.columnConverters = converters
	return p
}

// SetDelimiter задаёт разделитель; 0: определить по первой строке.
func (p *Processor) SetDelimiter(delimiter rune) *Processor {
	p.delimiter = delimiter
	return p
}

func (p *Processor) SetHeader(header bool) *Processor {
	p.header = header
	return p
}

// SetLimit ограничивает число записей в образце; 0: без ограничения.
func (p *Processor) SetLimit(limit int) *Processor {
	p.limit = limit
	return p
}

// SetEncoding выбирает кодировку входных данных. Пустое имя и utf-8 читаются как есть.
func (p *Processor) SetEncoding(name string) (*Processor, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	switch name {
	case "", "utf-8", "utf8":
		p.decoder = nil
		return p, nil
	}
	enc, ok := encodings[name]
	if !ok {
		return p, fmt.Errorf("unsupported encoding %q", name)
	}
	p.decoder = enc
	return p, nil
}

// ProcessCSV читает CSV из reader и возвращает таблицу: колонки, первые limit записей и общее число строк данных.
func (p *Processor) ProcessCSV(reader io.Reader) (*Table, error) {
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("csv read error: %w", err)
	}
	if p.decoder != nil {
		raw, _, err = transform.Bytes(p.decoder.NewDecoder(), raw)
		if err != nil {
			return nil, fmt.Errorf("csv decode error: %w", err)
		}
	}
	raw = bytes.TrimPrefix(raw, utf8BOM)

	csvReader := csv.NewReader(bytes.NewReader(raw))
	csvReader.Comma = p.delimiter
	if csvReader.Comma == 0 {
		csvReader.Comma = sniffDelimiter(raw)
	}
	csvReader.LazyQuotes = true
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true

	table := &Table{Records: []Record{}}
	var header []string
	seen := map[string]struct{}{}

	for line := 0; ; line++ {
		row, err := csvReader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read error: %w", err)
		}

		if line == 0 {
			header = p.headerFor(row)
			for _, col := range header {
				table.Columns = appendColumn(table.Columns, seen, col)
			}
			if p.header {
				continue
			}
		}
		if isBlankRow(row) {
			continue
		}

		table.Total++
		if p.limit > 0 && len(table.Records) >= p.limit {
			continue
		}

		record, err := p.convertRow(row, header)
		if err != nil {
			return nil, fmt.Errorf("row %d conversion error: %w", line+1, err)
		}
		for i := len(header); i < len(row); i++ {
			if _, ok := record[columnName(i)]; ok {
				table.Columns = appendColumn(table.Columns, seen, columnName(i))
			}
		}
		table.Records = append(table.Records, record)
	}

	if len(table.Columns) == 0 {
		return nil, fmt.Errorf("csv data is empty")
	}
	return table, nil
}

func (p *Processor) headerFor(first []string) []string {
	if p.header {
		header := make([]string, len(first))
		for i, col := range first {
			header[i] = strings.TrimSpace(col)
		}
		return header
	}
	if len(p.columns) > 0 {
		return p.columns
	}
	header := make([]string, len(first))
	for i := range first {
		header[i] = columnName(i)
	}
	return header
}

func (p *Processor) convertRow(row []string, header []string) (Record, error) {
	record := make(Record, len(header))
	for i, col := range header {
		record[col] = nil
		if i >= len(row) {
			continue
		}
		val, err := p.convertCell(col, row[i])
		if err != nil {
			return nil, err
		}
		record[col] = val
	}
	// лишние ячейки без заголовка не теряем
	for i := len(header); i < len(row); i++ {
		val, err := p.convertCell(columnName(i), row[i])
		if err != nil {
			return nil, err
		}
		if val != nil {
			record[columnName(i)] = val
		}
	}
	return record, nil
}

func (p *Processor) convertCell(col, cell string) (interface{}, error) {
	conv, exists := p.columnConverters[col]
	if !exists {
		conv = converters.DefaultConverter
	}
	val, err := conv(cell)
	if err != nil {
		return nil, fmt.Errorf("ошибка конвертации для колонки %q, значение %q: %w", col, cell, err)
	}
	return val, nil
}

func columnName(i int) string {
	return "column_" + strconv.Itoa(i+1)
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func sniffDelimiter(raw []byte) rune {
	firstLine := raw
	if i := bytes.IndexByte(raw, '\n'); i >= 0 {
		firstLine = raw[:i]
	}
	best, bestCount := ',', 0
	for _, d := range delimiterCandidates {
		if n := bytes.Count(firstLine, []byte(string(d))); n > bestCount {
			best, bestCount = d, n
		}
	}
	return best
}
