package records

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/charmap"

	"gomarket_mdm/pkg/records/converters"
)

func TestParse_CSVWithHeader(t *testing.T) {
	body := []byte("SKU,Title,UPC Code\nA-1,Widget,012345\nA-2,Gadget,\n")

	table, err := Parse(body, Options{Filename: "catalog.csv"})
	require.NoError(t, err)

	assert.Equal(t, []string{"SKU", "Title", "UPC Code"}, table.Columns)
	assert.Equal(t, 2, table.Total)
	want := []Record{
		{"SKU": "A-1", "Title": "Widget", "UPC Code": "012345"},
		{"SKU": "A-2", "Title": "Gadget", "UPC Code": nil},
	}
	if diff := cmp.Diff(want, table.Records); diff != "" {
		t.Errorf("records mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_CSVLimitKeepsTotal(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("sku;qty\n")
	for i := 0; i < 10; i++ {
		sb.WriteString("x;1\n")
	}

	table, err := Parse([]byte(sb.String()), Options{Format: FormatCSV, Limit: 3})
	require.NoError(t, err)

	assert.Len(t, table.Records, 3)
	assert.Equal(t, 10, table.Total)
	// разделитель определён по первой строке
	assert.Equal(t, []string{"sku", "qty"}, table.Columns)
}

func TestParse_CSVWindows1251(t *testing.T) {
	src := "Артикул;Наименование\n1001;Кружка\n"
	encoded, err := charmap.Windows1251.NewEncoder().String(src)
	require.NoError(t, err)

	table, err := Parse([]byte(encoded), Options{Format: FormatCSV, Delimiter: ';', Encoding: "windows-1251"})
	require.NoError(t, err)

	assert.Equal(t, []string{"Артикул", "Наименование"}, table.Columns)
	require.Len(t, table.Records, 1)
	assert.Equal(t, "Кружка", table.Records[0]["Наименование"])
}

func TestParse_CSVWithoutHeader(t *testing.T) {
	table, err := Parse([]byte("a,1\nb,2,extra\n"), Options{Format: FormatCSV, NoHeader: true})
	require.NoError(t, err)

	assert.Equal(t, []string{"column_1", "column_2", "column_3"}, table.Columns)
	assert.Equal(t, 2, table.Total)
	assert.Equal(t, "extra", table.Records[1]["column_3"])
}

func TestParse_CSVConverters(t *testing.T) {
	conv, err := converters.ForTypes(map[string]string{"price": "number", "active": "boolean"})
	require.NoError(t, err)

	table, err := Parse([]byte("sku,price,active\nA,\"12,5\",yes\n"), Options{Format: FormatCSV, Delimiter: ',', Converters: conv})
	require.NoError(t, err)
	assert.Equal(t, 12.5, table.Records[0]["price"])
	assert.Equal(t, true, table.Records[0]["active"])

	_, err = Parse([]byte("sku,price\nA,abc\n"), Options{Format: FormatCSV, Converters: conv})
	assert.Error(t, err)
}

func TestParse_CSVUnknownEncoding(t *testing.T) {
	_, err := Parse([]byte("a,b\n"), Options{Format: FormatCSV, Encoding: "ebcdic"})
	assert.Error(t, err)
}

func TestParse_JSONShapes(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		columns []string
		total   int
	}{
		{"top-level array", `[{"sku":"A","price":1},{"sku":"B","brand":"X"}]`, []string{"sku", "price", "brand"}, 2},
		{"data field", `{"meta":{"page":1},"items":[{"sku":"A"}]}`, []string{"sku"}, 1},
		{"first known field wins", `{"results":[{"a":1}],"products":[{"b":1},{"b":2}]}`, []string{"a"}, 1},
		{"single object", `{"sku":"A","title":"T"}`, []string{"sku", "title"}, 1},
		{"scalars", `[1,2,3]`, []string{"value"}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table, err := Parse([]byte(tt.body), Options{})
			require.NoError(t, err)
			assert.Equal(t, tt.columns, table.Columns)
			assert.Equal(t, tt.total, table.Total)
		})
	}
}

func TestParse_JSONLimitAndNesting(t *testing.T) {
	table, err := ParseJSON([]byte(`{"data":[{"dims":{"w":1},"tags":["a"]},{"dims":{"w":2}},{"dims":null}]}`), 2)
	require.NoError(t, err)

	assert.Equal(t, 3, table.Total)
	require.Len(t, table.Records, 2)
	assert.Equal(t, map[string]any{"w": float64(1)}, table.Records[0]["dims"])
	assert.Equal(t, []any{"a"}, table.Records[0]["tags"])
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{"sku": `), Options{Filename: "feed.json"})
	assert.Error(t, err)

	_, err = Parse([]byte(`"just a string"`), Options{Format: FormatJSON})
	assert.Error(t, err)

	_, err = Parse([]byte("   \n"), Options{})
	assert.Error(t, err)
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		filename string
		explicit Format
		want     Format
		wantErr  error
	}{
		{"explicit wins", `[1]`, "x.json", FormatCSV, FormatCSV, nil},
		{"extension", "a,b", "feed.JSON", "", FormatJSON, nil},
		{"tsv extension", "a\tb", "feed.tsv", "", FormatCSV, nil},
		{"sniff json", "  {\"a\":1}", "", "", FormatJSON, nil},
		{"sniff csv", "a,b\n1,2", "", "", FormatCSV, nil},
		{"xlsx extension", "", "feed.xlsx", "", "", ErrUnsupportedFormat},
		{"zip magic", "PK\x03\x04rest", "", "", "", ErrUnsupportedFormat},
		{"unknown explicit", "", "", "xml", "", ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DetectFormat([]byte(tt.body), tt.filename, tt.explicit)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTable_Column(t *testing.T) {
	table := &Table{Records: []Record{{"a": 1}, {"b": 2}}}
	assert.Equal(t, []any{1, nil}, table.Column("a"))
}
