package reconcile

import (
	"strings"
	"unicode"
)

// aliasTable: типичные названия колонок у поставщиков для полей схемы.
var aliasTable = map[string][]string{
	"sku":          {"sku", "part number", "item number", "cwr part number", "product id", "product code", "item code", "article number", "vendor sku", "mpn", "артикул"},
	"product_name": {"title", "name", "item name", "product title", "наименование"},
	"description":  {"description", "long description", "details", "описание"},
	"price":        {"list price", "msrp", "retail price", "unit price", "price", "цена"},
	"cost":         {"cost", "wholesale price", "dealer price", "your cost"},
	"inventory":    {"inventory", "stock", "quantity", "qty", "on hand", "available", "остаток"},
	"category":     {"category", "department", "product type", "product group", "категория"},
	"brand":        {"brand", "manufacturer", "vendor", "make", "producer", "бренд"},
	"upc":          {"upc", "barcode", "gtin", "ean", "штрихкод"},
	"weight":       {"weight", "shipping weight", "item weight", "вес"},
	"dimensions":   {"dimensions", "measurements", "package dimensions", "размеры"},
}

// normalize приводит имя к нижнему регистру и убирает "_", "-" и пробельные символы.
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '_' || r == '-' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// aliasesFor: нормализованные псевдонимы поля: из таблицы и из конфигурации.
func aliasesFor(target TargetFieldSpec) []string {
	raw := append(append([]string(nil), aliasTable[target.ID]...), target.Aliases...)
	out := make([]string, 0, len(raw))
	for _, a := range raw {
		if n := normalize(a); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// family: поле схемы вместе со всеми его псевдонимами, в нормализованном виде.
func family(target TargetFieldSpec) map[string]struct{} {
	f := map[string]struct{}{}
	for _, s := range append([]string{normalize(target.ID), normalize(target.Name)}, aliasesFor(target)...) {
		if s != "" {
			f[s] = struct{}{}
		}
	}
	return f
}
