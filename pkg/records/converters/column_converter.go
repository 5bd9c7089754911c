package converters

import (
	"fmt"
	"strconv"
	"strings"
)

type ColumnConverter func(string) (interface{}, error)

func DecimalConverter(cell string) (interface{}, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	// поставщики из РФ пишут десятичную запятую
	return strconv.ParseFloat(strings.Replace(cell, ",", ".", 1), 64)
}

func IntConverter(cell string) (interface{}, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	return strconv.Atoi(cell)
}

func BoolConverter(cell string) (interface{}, error) {
	cell = strings.ToLower(strings.TrimSpace(cell))
	switch cell {
	case "":
		return nil, nil
	case "true", "yes", "1", "да":
		return true, nil
	case "false", "no", "0", "нет":
		return false, nil
	}
	return nil, fmt.Errorf("not a boolean: %q", cell)
}

func DefaultConverter(cell string) (interface{}, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" {
		return nil, nil
	}
	return cell, nil
}

// ForType возвращает конвертер для имени типа из настроек источника.
func ForType(typeName string) (ColumnConverter, error) {
	switch strings.ToLower(typeName) {
	case "", TypeString:
		return DefaultConverter, nil
	case TypeNumber, "decimal", "float":
		return DecimalConverter, nil
	case "integer", "int":
		return IntConverter, nil
	case TypeBoolean, "bool":
		return BoolConverter, nil
	}
	return nil, fmt.Errorf("unknown column type %q", typeName)
}

// ForTypes собирает конвертеры по карте колонка -> тип.
func ForTypes(types map[string]string) (map[string]ColumnConverter, error) {
	res := make(map[string]ColumnConverter, len(types))
	for col, typeName := range types {
		conv, err := ForType(typeName)
		if err != nil {
			return nil, fmt.Errorf("column %q: %w", col, err)
		}
		res[col] = conv
	}
	return res, nil
}
