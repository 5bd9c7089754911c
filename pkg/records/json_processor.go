package records

import (
	"bytes"
	"errors"

	"github.com/tidwall/gjson"
)

// Поля, в которых API поставщиков обычно отдают массив записей.
var dataArrayFields = []string{"data", "items", "results", "products", "records"}

// ParseJSON разбирает JSON-выгрузку: массив верхнего уровня, первый найденный массив
// из dataArrayFields или сам объект как одну запись.
func ParseJSON(body []byte, limit int) (*Table, error) {
	body = bytes.TrimPrefix(body, utf8BOM)
	if !gjson.ValidBytes(body) {
		return nil, errors.New("invalid json")
	}

	root := gjson.ParseBytes(body)
	var items []gjson.Result
	switch {
	case root.IsArray():
		items = root.Array()
	case root.IsObject():
		items = []gjson.Result{root}
		for _, field := range dataArrayFields {
			if arr := root.Get(field); arr.IsArray() {
				items = arr.Array()
				break
			}
		}
	default:
		return nil, errors.New("json payload is neither an array nor an object")
	}

	table := &Table{Records: []Record{}, Total: len(items)}
	seen := map[string]struct{}{}
	for _, item := range items {
		if limit > 0 && len(table.Records) >= limit {
			break
		}
		record := Record{}
		if item.IsObject() {
			item.ForEach(func(key, value gjson.Result) bool {
				record[key.String()] = value.Value()
				table.Columns = appendColumn(table.Columns, seen, key.String())
				return true
			})
		} else {
			record["value"] = item.Value()
			table.Columns = appendColumn(table.Columns, seen, "value")
		}
		table.Records = append(table.Records, record)
	}
	return table, nil
}
