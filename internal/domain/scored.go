package domain

// Scored - идентификатор кандидата и его оценка сходства (больше - ближе)
type Scored struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// IDs возвращает идентификаторы в том же порядке.
func IDs(items []Scored) []string {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}

	return ids
}
