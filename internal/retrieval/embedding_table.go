package retrieval

import (
	"fmt"

	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// EmbeddingTable - словарь плюс матрица с len(vocab)+1 строками.
// Строка 0 зарезервирована под OOV, идентификатор с индексом i хранится в строке i+1.
type EmbeddingTable struct {
	vocab   *Vocabulary
	vectors *Matrix
}

func NewEmbeddingTable(vocab *Vocabulary, vectors *Matrix) (*EmbeddingTable, error) {
	if vectors.Rows() != vocab.Len()+1 {
		return nil, fmt.Errorf("%d ids need %d rows (with OOV row), got %d: %w",
			vocab.Len(), vocab.Len()+1, vectors.Rows(), e.ErrRowCountMismatch)
	}

	return &EmbeddingTable{vocab: vocab, vectors: vectors}, nil
}

func (t *EmbeddingTable) Lookup(id string) Lookup {
	return t.vocab.Lookup(id)
}

// Vector возвращает вектор известного идентификатора или строку OOV.
func (t *EmbeddingTable) Vector(l Lookup) []float32 {
	if i, ok := l.Index(); ok {
		return t.vectors.Row(i + 1)
	}

	return t.vectors.Row(0)
}

// Known возвращает строки 1..N - векторы идентификаторов словаря без строки OOV.
func (t *EmbeddingTable) Known() *Matrix {
	return t.vectors.Slice(1, t.vectors.Rows())
}

func (t *EmbeddingTable) Vocabulary() *Vocabulary { return t.vocab }

func (t *EmbeddingTable) Dim() int { return t.vectors.Dim() }

func (t *EmbeddingTable) Len() int { return t.vocab.Len() }
