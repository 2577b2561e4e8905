package retrieval

import (
	"fmt"

	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// Lookup - результат поиска идентификатора в словаре: Known(index) или OutOfVocabulary.
type Lookup struct {
	index int
	known bool
}

// OutOfVocabulary - идентификатор не встречался при обучении.
var OutOfVocabulary = Lookup{index: -1}

func Known(index int) Lookup {
	return Lookup{index: index, known: true}
}

// Index возвращает индекс в словаре и признак того, что идентификатор известен.
func (l Lookup) Index() (int, bool) {
	return l.index, l.known
}

func (l Lookup) IsKnown() bool {
	return l.known
}

// Vocabulary хранит упорядоченные идентификаторы и обратный индекс.
// Порядок идентификаторов совпадает с порядком строк соответствующей матрицы.
type Vocabulary struct {
	ids   []string
	index map[string]int
}

func NewVocabulary(ids []string) (*Vocabulary, error) {
	if len(ids) == 0 {
		return nil, e.ErrEmptyVocabulary
	}

	index := make(map[string]int, len(ids))
	for i, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("row %d: %w", i, e.ErrEmptyID)
		}
		if prev, ok := index[id]; ok {
			return nil, fmt.Errorf("%q at rows %d and %d: %w", id, prev, i, e.ErrDuplicateID)
		}
		index[id] = i
	}

	return &Vocabulary{
		ids:   append([]string(nil), ids...),
		index: index,
	}, nil
}

func (v *Vocabulary) Lookup(id string) Lookup {
	if i, ok := v.index[id]; ok {
		return Known(i)
	}

	return OutOfVocabulary
}

func (v *Vocabulary) ID(i int) string {
	return v.ids[i]
}

// IDs возвращает копию идентификаторов.
func (v *Vocabulary) IDs() []string {
	return append([]string(nil), v.ids...)
}

func (v *Vocabulary) Len() int {
	return len(v.ids)
}
