package reconcile

import "gomarket_mdm/pkg/records/converters"

// TargetFieldSpec: поле канонической схемы товара.
type TargetFieldSpec struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Required    bool     `json:"required"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Aliases     []string `json:"aliases,omitempty"`
}

// FieldMapping связывает колонку поставщика с полем схемы. Пустая сторона: заглушка.
type FieldMapping struct {
	SourceField string `json:"source_field"`
	TargetField string `json:"target_field"`
}

// Complete: обе стороны заданы; только такие сопоставления можно сохранять.
func (m FieldMapping) Complete() bool {
	return m.SourceField != "" && m.TargetField != ""
}

// DefaultTargets: встроенная схема товара, если каталог не задан в конфигурации.
func DefaultTargets() []TargetFieldSpec {
	return []TargetFieldSpec{
		{ID: "sku", Name: "SKU", Required: true, Type: converters.TypeString, Description: "Supplier stock keeping unit"},
		{ID: "product_name", Name: "Product Name", Required: true, Type: converters.TypeString, Description: "Product title"},
		{ID: "description", Name: "Description", Type: converters.TypeString},
		{ID: "price", Name: "Price", Required: true, Type: converters.TypeNumber, Description: "List price"},
		{ID: "cost", Name: "Cost", Type: converters.TypeNumber, Description: "Wholesale cost"},
		{ID: "inventory", Name: "Inventory", Type: converters.TypeNumber},
		{ID: "category", Name: "Category", Type: converters.TypeString},
		{ID: "brand", Name: "Brand", Type: converters.TypeString},
		{ID: "upc", Name: "UPC", Type: converters.TypeString, Description: "Barcode"},
		{ID: "weight", Name: "Weight", Type: converters.TypeNumber},
		{ID: "dimensions", Name: "Dimensions", Type: converters.TypeString},
	}
}
