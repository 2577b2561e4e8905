package retrieval

import (
	"fmt"
	"strings"

	"github.com/DRSN-tech/go-recommender/internal/domain"
	"github.com/DRSN-tech/go-recommender/pkg/e"
)

// OOVPolicy определяет поведение для неизвестного пользователя.
type OOVPolicy int

const (
	// OOVPlaceholder - ранжировать по строке OOV, как делает обученная модель.
	OOVPlaceholder OOVPolicy = iota
	// OOVReject - отвечать, что пользователь не найден.
	OOVReject
)

func ParseOOVPolicy(s string) (OOVPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "placeholder":
		return OOVPlaceholder, nil
	case "reject":
		return OOVReject, nil
	default:
		return 0, fmt.Errorf("oov policy %q: %w", s, e.ErrIncorrectEnvVariable)
	}
}

func (p OOVPolicy) String() string {
	if p == OOVReject {
		return "reject"
	}

	return "placeholder"
}

// UserRetriever ранжирует продукты для пользователя скалярным произведением эмбеддингов.
type UserRetriever struct {
	users      *EmbeddingTable
	products   *EmbeddingTable
	candidates *Matrix
	policy     OOVPolicy
}

func NewUserRetriever(users, products *EmbeddingTable, policy OOVPolicy) (*UserRetriever, error) {
	if users.Dim() != products.Dim() {
		return nil, fmt.Errorf("user dim %d != product dim %d: %w", users.Dim(), products.Dim(), e.ErrDimensionMismatch)
	}

	return &UserRetriever{
		users:      users,
		products:   products,
		candidates: products.Known(),
		policy:     policy,
	}, nil
}

// Recommend возвращает k продуктов с наибольшим score для userID.
func (r *UserRetriever) Recommend(userID string, k int) ([]domain.Scored, error) {
	if userID == "" {
		return nil, e.ErrUserIDRequired
	}
	if k <= 0 {
		return nil, e.ErrInvalidCount
	}

	l := r.users.Lookup(userID)
	if !l.IsKnown() && r.policy == OOVReject {
		return nil, e.NewNotFoundError("User", userID)
	}

	scores, err := r.candidates.MulVec(r.users.Vector(l))
	if err != nil {
		return nil, err
	}

	vocab := r.products.Vocabulary()
	top := TopK(scores, k)
	out := make([]domain.Scored, len(top))
	for i, idx := range top {
		out[i] = domain.Scored{ID: vocab.ID(idx), Score: scores[idx]}
	}

	return out, nil
}

func (r *UserRetriever) Users() int { return r.users.Len() }

func (r *UserRetriever) Products() int { return r.products.Len() }

func (r *UserRetriever) Dim() int { return r.users.Dim() }

func (r *UserRetriever) Policy() OOVPolicy { return r.policy }

// KnowsUser сообщает, встречался ли пользователь при обучении.
func (r *UserRetriever) KnowsUser(userID string) bool {
	return r.users.Lookup(userID).IsKnown()
}
