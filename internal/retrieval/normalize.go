package retrieval

import (
	"math"

	"github.com/viant/vec/search"
)

// Norm возвращает евклидову (L2) норму вектора.
func Norm(v []float32) float32 {
	return search.Float32s(v).Magnitude()
}

// Normalize возвращает копию v единичной длины.
// Для нулевой (или нечисловой) нормы возвращается нулевой вектор и false:
// такой продукт получает сходство 0 со всеми остальными.
func Normalize(v []float32) ([]float32, bool) {
	out := make([]float32, len(v))
	if !normalizeInto(out, v) {
		return out, false
	}

	return out, true
}

// NormalizeRows нормирует каждую строку и возвращает новую матрицу и число нулевых строк.
func NormalizeRows(m *Matrix) (*Matrix, int) {
	data := make([]float32, m.rows*m.dim)
	zero := 0
	for i := 0; i < m.rows; i++ {
		if !normalizeInto(data[i*m.dim:(i+1)*m.dim], m.Row(i)) {
			zero++
		}
	}

	return &Matrix{rows: m.rows, dim: m.dim, data: data}, zero
}

func normalizeInto(dst, src []float32) bool {
	norm := float64(Norm(src))
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		clear(dst)
		return false
	}

	inv := 1 / norm
	for i, x := range src {
		dst[i] = float32(float64(x) * inv)
	}

	return true
}
