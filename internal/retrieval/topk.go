package retrieval

import (
	"container/heap"
	"math"
	"slices"
)

// heapRatio - при k < N/heapRatio выбор идёт через кучу размера k, иначе через полную сортировку.
const heapRatio = 4

// TopK возвращает индексы k лучших значений: по убыванию score, при равенстве по возрастанию индекса.
// k <= 0 даёт пустой (не nil) результат, k > N обрезается до N. NaN всегда в конце.
func TopK(scores []float32, k int) []int {
	return TopKExcluding(scores, k, -1)
}

// TopKExcluding - то же, что TopK, но индекс exclude в выборку не попадает.
// Отрицательный или выходящий за границы exclude игнорируется.
func TopKExcluding(scores []float32, k int, exclude int) []int {
	n := len(scores)
	if exclude >= 0 && exclude < n {
		n--
	} else {
		exclude = -1
	}

	if k <= 0 || n == 0 {
		return []int{}
	}
	if k > n {
		k = n
	}

	if k*heapRatio < n {
		return selectHeap(scores, k, exclude)
	}

	return selectSort(scores, k, exclude)
}

// ranksBefore сообщает, стоит ли кандидат i в выдаче раньше кандидата j.
func ranksBefore(scores []float32, i, j int) bool {
	si, sj := scores[i], scores[j]
	ni, nj := math.IsNaN(float64(si)), math.IsNaN(float64(sj))

	switch {
	case ni != nj:
		return nj
	case !ni && si != sj:
		return si > sj
	default:
		return i < j
	}
}

func compareRank(scores []float32) func(i, j int) int {
	return func(i, j int) int {
		switch {
		case i == j:
			return 0
		case ranksBefore(scores, i, j):
			return -1
		default:
			return 1
		}
	}
}

func selectSort(scores []float32, k, exclude int) []int {
	idx := make([]int, 0, len(scores))
	for i := range scores {
		if i != exclude {
			idx = append(idx, i)
		}
	}

	slices.SortFunc(idx, compareRank(scores))

	return idx[:k:k]
}

func selectHeap(scores []float32, k, exclude int) []int {
	h := &worstFirst{scores: scores, idx: make([]int, 0, k)}

	for i := range scores {
		if i == exclude {
			continue
		}
		if h.Len() < k {
			heap.Push(h, i)
			continue
		}
		if ranksBefore(scores, i, h.idx[0]) {
			h.idx[0] = i
			heap.Fix(h, 0)
		}
	}

	out := h.idx
	slices.SortFunc(out, compareRank(scores))

	return out
}

// worstFirst - куча, на вершине которой худший из отобранных кандидатов.
type worstFirst struct {
	scores []float32
	idx    []int
}

func (h *worstFirst) Len() int { return len(h.idx) }

func (h *worstFirst) Less(a, b int) bool { return ranksBefore(h.scores, h.idx[b], h.idx[a]) }

func (h *worstFirst) Swap(a, b int) { h.idx[a], h.idx[b] = h.idx[b], h.idx[a] }

func (h *worstFirst) Push(x any) { h.idx = append(h.idx, x.(int)) }

func (h *worstFirst) Pop() any {
	last := h.idx[len(h.idx)-1]
	h.idx = h.idx[:len(h.idx)-1]
	return last
}
