package reconcile

// Template: сохранённый набор сопоставлений, например от прошлой загрузки того же поставщика.
type Template struct {
	Name     string
	Mappings []FieldMapping
}

type Suggestion struct {
	TemplateName string         `json:"template_name"`
	Mappings     []FieldMapping `json:"mappings"`
	ExactMatches int            `json:"exact_matches"`
	TotalFields  int            `json:"total_fields"`
	Score        float64        `json:"score"`
}

const (
	exactWeight  = 0.7
	familyWeight = 0.3
	familyCredit = 0.5
)

// SuggestTemplate выбирает шаблон, чьи исходные колонки лучше всего совпадают с заголовками.
// Оценка: 0.7 за точные совпадения и 0.3 за совпадения по семейству псевдонимов,
// делённые на большее из числа колонок и числа полей шаблона. При равенстве побеждает первый шаблон.
func SuggestTemplate(headers []string, templates []Template, targets []TargetFieldSpec) (*Suggestion, float64) {
	if len(headers) == 0 || len(templates) == 0 {
		return nil, 0
	}

	headerSet := map[string]struct{}{}
	var uniqueHeaders []string
	for _, h := range headers {
		if _, ok := headerSet[h]; ok {
			continue
		}
		headerSet[h] = struct{}{}
		uniqueHeaders = append(uniqueHeaders, h)
	}
	families := familiesOf(targets)

	var best *Suggestion
	bestScore := 0.0
	for _, tpl := range templates {
		sources := map[string]struct{}{}
		for _, m := range tpl.Mappings {
			if m.SourceField != "" {
				sources[m.SourceField] = struct{}{}
			}
		}
		if len(sources) == 0 {
			continue
		}

		exact := 0
		for s := range sources {
			if _, ok := headerSet[s]; ok {
				exact++
			}
		}

		fuzzy := 0.0
		for _, h := range uniqueHeaders {
			for _, fam := range families {
				if _, ok := fam[normalize(h)]; !ok {
					continue
				}
				if anyInFamily(sources, fam) {
					fuzzy += familyCredit
				}
			}
		}

		total := len(uniqueHeaders)
		if len(sources) > total {
			total = len(sources)
		}
		score := exactWeight*float64(exact)/float64(total) + familyWeight*fuzzy/float64(total)
		if score <= bestScore {
			continue
		}

		bestScore = score
		best = &Suggestion{
			TemplateName: tpl.Name,
			Mappings:     applyTemplate(tpl, uniqueHeaders, headerSet, families),
			ExactMatches: exact,
			TotalFields:  total,
			Score:        score,
		}
	}
	return best, bestScore
}

func applyTemplate(tpl Template, headers []string, headerSet map[string]struct{}, families []map[string]struct{}) []FieldMapping {
	var out []FieldMapping
	used := map[string]struct{}{}
	for _, m := range tpl.Mappings {
		if !m.Complete() {
			continue
		}
		if _, ok := used[m.TargetField]; ok {
			continue
		}
		source := ""
		if _, ok := headerSet[m.SourceField]; ok {
			source = m.SourceField
		} else {
			source = familyMatch(m.SourceField, headers, families)
		}
		if source == "" {
			continue
		}
		used[m.TargetField] = struct{}{}
		out = append(out, FieldMapping{SourceField: source, TargetField: m.TargetField})
	}
	return out
}

// familyMatch ищет среди заголовков первый из того же семейства псевдонимов, что и field.
func familyMatch(field string, headers []string, families []map[string]struct{}) string {
	nf := normalize(field)
	for _, fam := range families {
		if _, ok := fam[nf]; !ok {
			continue
		}
		for _, h := range headers {
			if _, ok := fam[normalize(h)]; ok {
				return h
			}
		}
	}
	return ""
}

func familiesOf(targets []TargetFieldSpec) []map[string]struct{} {
	if len(targets) == 0 {
		targets = DefaultTargets()
	}
	out := make([]map[string]struct{}, 0, len(targets))
	for _, t := range targets {
		out = append(out, family(t))
	}
	return out
}

func anyInFamily(fields map[string]struct{}, fam map[string]struct{}) bool {
	for f := range fields {
		if _, ok := fam[normalize(f)]; ok {
			return true
		}
	}
	return false
}
