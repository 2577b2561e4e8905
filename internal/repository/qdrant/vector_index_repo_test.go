package qdrant

import (
	"testing"

	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointIDIsStable(t *testing.T) {
	assert.Equal(t, PointID("P1"), PointID("P1"))
	assert.NotEqual(t, PointID("P1"), PointID("P2"))
	assert.Len(t, PointID("P1"), 36)
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, chunk(items, 0))
	assert.Nil(t, chunk([]int{}, 3))
}

func TestToPoints(t *testing.T) {
	items := []usecase.ProductVector{
		usecase.NewProductVector("P1", []float32{0.6, 0.8}, map[string]string{"name": "mug"}),
	}

	points := toPoints("v3", items)
	require.Len(t, points, 1)

	p := points[0]
	assert.Equal(t, PointID("P1"), p.GetId().GetUuid())
	assert.NotNil(t, p.GetVectors())
	assert.Equal(t, "P1", p.GetPayload()["product_id"].GetStringValue())
	assert.Equal(t, "v3", p.GetPayload()["artifact_version"].GetStringValue())
	assert.Equal(t, "mug", p.GetPayload()["attributes"].GetStructValue().GetFields()["name"].GetStringValue())
}
