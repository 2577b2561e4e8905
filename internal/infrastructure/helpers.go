package infrastructure

import (
	"path"
	"strings"
)

// ContentTypeByKey возвращает Content-Type объекта артефакта по расширению ключа.
// Неизвестные расширения загружаются как application/octet-stream.
func ContentTypeByKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".json":
		return "application/json"
	case ".csv":
		return "text/csv"
	case ".npy":
		return "application/x-npy"
	default:
		return "application/octet-stream"
	}
}
