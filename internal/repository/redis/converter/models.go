package converter

// ScoredRedisModel - элемент закэшированной выдачи.
type ScoredRedisModel struct {
	ID    string  `json:"id"`
	Score float32 `json:"score"`
}

// ScoredListRedisModel - значение ключа кэша. Version дублирует версию из ключа для проверки при чтении.
type ScoredListRedisModel struct {
	Version string             `json:"version"`
	Items   []ScoredRedisModel `json:"items"`
}
