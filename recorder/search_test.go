package recorder

import (
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/n0remac/visionguard/store"
)

func TestOpenIndexCreatesOnFirstUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bleve")
	idx, err := OpenIndex(path)
	require.NoError(t, err)
	defer idx.Close()
	assert.NotNil(t, idx.Index)
}

func TestUpsertAndSearch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.bleve")
	idx, err := OpenIndex(path)
	require.NoError(t, err)
	defer idx.Close()

	event := store.AnomalyEvent{
		ID:          uuid.New(),
		ShopID:      uuid.New(),
		Description: "person fell near the checkout counter",
		AnomalyType: "fall_detection",
		Location:    "checkout",
		Severity:    store.SeverityHigh,
		Status:      store.StatusPending,
	}
	require.NoError(t, idx.Upsert(event))

	result, err := idx.Search("checkout", 10)
	require.NoError(t, err)
	assert.NotZero(t, result.Total)
}
