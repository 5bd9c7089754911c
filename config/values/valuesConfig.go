package values

// Catalog: справочные данные, которые не меняются во время работы: целевые поля,
// правила симуляции по категориям и сохранённые шаблоны сопоставления.
type Catalog struct {
	Targets              []TargetField     `yaml:"targets" validate:"dive"`
	RestrictedCategories []CategoryRule    `yaml:"restricted_categories" validate:"dive"`
	Templates            []MappingTemplate `yaml:"templates" validate:"dive"`
}

type TargetField struct {
	ID          string   `yaml:"id" validate:"required"`
	Name        string   `yaml:"name"`
	Required    bool     `yaml:"required"`
	Type        string   `yaml:"type" validate:"omitempty,oneof=string number boolean date object array"`
	Description string   `yaml:"description"`
	Aliases     []string `yaml:"aliases"`
}

// CategoryRule помечает категорию как непродаваемую в симулированных ответах.
// Match сравнивается как подстрока без учёта регистра.
type CategoryRule struct {
	Match  string `yaml:"match" validate:"required"`
	Reason string `yaml:"reason"`
}

type MappingTemplate struct {
	Name     string         `yaml:"name" validate:"required"`
	Mappings []TemplatePair `yaml:"mappings" validate:"dive"`
}

type TemplatePair struct {
	Source string `yaml:"source" validate:"required"`
	Target string `yaml:"target" validate:"required"`
}

// Empty сообщает, что каталог не задан в конфигурации и нужно брать встроенные значения.
func (c Catalog) Empty() bool {
	return len(c.Targets) == 0 && len(c.RestrictedCategories) == 0 && len(c.Templates) == 0
}
