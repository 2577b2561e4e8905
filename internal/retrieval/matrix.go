package retrieval

import (
	"fmt"

	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// Matrix - плотная матрица N×d в row-major порядке. После создания не изменяется.
type Matrix struct {
	rows int
	dim  int
	data []float32
}

func NewMatrix(rows, dim int, data []float32) (*Matrix, error) {
	if rows < 0 || dim <= 0 {
		return nil, fmt.Errorf("shape %dx%d: %w", rows, dim, e.ErrDimensionMismatch)
	}
	if len(data) != rows*dim {
		return nil, fmt.Errorf("shape %dx%d needs %d values, got %d: %w", rows, dim, rows*dim, len(data), e.ErrDimensionMismatch)
	}

	return &Matrix{rows: rows, dim: dim, data: data}, nil
}

// FromRows собирает матрицу из строк одинаковой длины.
func FromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows: %w", e.ErrDimensionMismatch)
	}

	dim := len(rows[0])
	data := make([]float32, 0, len(rows)*dim)
	for i, r := range rows {
		if len(r) != dim {
			return nil, fmt.Errorf("row %d has %d values, want %d: %w", i, len(r), dim, e.ErrDimensionMismatch)
		}
		data = append(data, r...)
	}

	return NewMatrix(len(rows), dim, data)
}

func (m *Matrix) Rows() int { return m.rows }

func (m *Matrix) Dim() int { return m.dim }

// Row возвращает строку i. Срез ограничен по capacity, append не затронет соседние строки.
func (m *Matrix) Row(i int) []float32 {
	start := i * m.dim
	end := start + m.dim
	return m.data[start:end:end]
}

// Slice возвращает представление строк [from, to) без копирования.
func (m *Matrix) Slice(from, to int) *Matrix {
	return &Matrix{
		rows: to - from,
		dim:  m.dim,
		data: m.data[from*m.dim : to*m.dim],
	}
}

// MulVec считает скалярное произведение q с каждой строкой: O(N·d).
func (m *Matrix) MulVec(q []float32) ([]float32, error) {
	if len(q) != m.dim {
		return nil, fmt.Errorf("query dim %d != matrix dim %d: %w", len(q), m.dim, e.ErrDimensionMismatch)
	}

	scores := make([]float32, m.rows)
	for i := 0; i < m.rows; i++ {
		scores[i] = Dot(q, m.Row(i))
	}

	return scores, nil
}

// Dot - скалярное произведение с накоплением в float64.
func Dot(a, b []float32) float32 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}

	return float32(s)
}
