// Package reconcile сопоставляет колонки поставщика с канонической схемой товара.
// Все функции чистые: без ввода-вывода и скрытого состояния.
package reconcile

import "strings"

// Reconcile предлагает сопоставления колонок полям схемы.
//
// Для каждого поля (в порядке targets) колонки просматриваются по порядку, и выигрывает
// первая, которая удовлетворяет любому из правил:
//  1. совпадает с ID или Name поля после нормализации;
//  2. содержит нормализованное имя поля или содержится в нём;
//  3. содержит один из псевдонимов поля.
//
// Одна колонка может достаться нескольким полям. Поля без совпадений в результат не попадают.
func Reconcile(headers []string, targets []TargetFieldSpec) []FieldMapping {
	normalized := make([]string, len(headers))
	for i, h := range headers {
		normalized[i] = normalize(h)
	}

	mappings := make([]FieldMapping, 0, len(targets))
	done := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		if target.ID == "" {
			continue
		}
		if _, ok := done[target.ID]; ok {
			continue
		}
		done[target.ID] = struct{}{}

		if idx := match(normalized, target); idx >= 0 {
			mappings = append(mappings, FieldMapping{SourceField: headers[idx], TargetField: target.ID})
		}
	}
	return mappings
}

func match(headers []string, target TargetFieldSpec) int {
	names := nonEmpty(normalize(target.ID), normalize(target.Name))
	aliases := aliasesFor(target)

	for i, h := range headers {
		if h == "" {
			continue
		}
		for _, n := range names {
			if h == n {
				return i
			}
		}
		for _, n := range names {
			if strings.Contains(h, n) || strings.Contains(n, h) {
				return i
			}
		}
		for _, a := range aliases {
			if strings.Contains(h, a) {
				return i
			}
		}
	}
	return -1
}

// UnmappedRequired возвращает ID обязательных полей, которых нет среди сопоставлений.
func UnmappedRequired(targets []TargetFieldSpec, mappings []FieldMapping) []string {
	mapped := make(map[string]struct{}, len(mappings))
	for _, m := range mappings {
		if m.Complete() {
			mapped[m.TargetField] = struct{}{}
		}
	}

	var missing []string
	seen := map[string]struct{}{}
	for _, t := range targets {
		if !t.Required {
			continue
		}
		if _, ok := mapped[t.ID]; ok {
			continue
		}
		if _, ok := seen[t.ID]; ok {
			continue
		}
		seen[t.ID] = struct{}{}
		missing = append(missing, t.ID)
	}
	return missing
}

func nonEmpty(values ...string) []string {
	out := values[:0]
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
