package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeArtifact(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	files := map[string]string{
		"manifest.json": `{
			"version": "v7",
			"dimension": 2,
			"user_ids": "user_ids.csv",
			"user_embeddings": "user_embeddings.json",
			"product_ids": "product_ids.csv",
			"product_embeddings": "product_embeddings.json",
			"product_vectors": "product_vectors.json",
			"product_metadata": "products.csv"
		}`,
		"user_ids.csv":            "id\nu1\nu2\n",
		"user_embeddings.json":    `[[0,1],[1,0],[0,1]]`,
		"product_ids.csv":         "id\np1\np2\n",
		"product_embeddings.json": `[[0,0],[1,0],[0,1]]`,
		"product_vectors.json":    `[[1,0],[0.8,0.2],[0,1]]`,
		"products.csv":            "productId,brand\npA,x\npB,y\npC,z\n",
	}

	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}

	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd(logger.NewNop())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestValidateCommand(t *testing.T) {
	out, err := run(t, "validate", "--dir", writeArtifact(t))
	require.NoError(t, err)

	var stats retrieval.Stats
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, "v7", stats.Version)
	assert.Equal(t, 2, stats.Users)
	assert.Equal(t, 3, stats.SimilarityProducts)
}

func TestValidateCommandRejectsBrokenDir(t *testing.T) {
	dir := writeArtifact(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "product_vectors.json"), []byte(`[[1,0,0]]`), 0o644))

	_, err := run(t, "validate", "--dir", dir)
	assert.Error(t, err)
}

func TestInspectCommand(t *testing.T) {
	out, err := run(t, "inspect", "--dir", writeArtifact(t), "--user", "u1", "--product", "pA", "-k", "1")
	require.NoError(t, err)

	var res inspectResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Recommendations, 1)
	assert.Equal(t, "p1", res.Recommendations[0].ID)
	require.Len(t, res.Related, 1)
	assert.Equal(t, "pB", res.Related[0].ID)

	_, err = run(t, "inspect", "--dir", writeArtifact(t))
	assert.Error(t, err)

	_, err = run(t, "inspect", "--dir", writeArtifact(t), "--user", "ghost", "--oov-policy", "reject")
	assert.Error(t, err)
}
