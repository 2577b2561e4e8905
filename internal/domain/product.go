package domain

// ProductColumn - обязательная колонка таблицы метаданных продуктов
const ProductColumn = "productId"

// Product описывает строку таблицы метаданных продуктов
type Product struct {
	ID         string
	Attributes map[string]string // brand, category, classify и прочие колонки CSV
}

func NewProduct(id string, attributes map[string]string) Product {
	return Product{
		ID:         id,
		Attributes: attributes,
	}
}
