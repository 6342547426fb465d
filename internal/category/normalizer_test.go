package category

import (
	"context"
	"testing"

	"github.com/Valecer/market-sub001/internal/catalog"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	all     []catalog.Category
	created []catalog.Category
}

func (f *fakeStore) LoadAllCategories(ctx context.Context) ([]catalog.Category, error) {
	return f.all, nil
}

func (f *fakeStore) CreateCategory(ctx context.Context, cat catalog.Category) (catalog.Category, error) {
	cat.ID = uuid.New()
	f.created = append(f.created, cat)
	f.all = append(f.all, cat)
	return cat, nil
}

func TestNormalize_EmptyPathReturnsNilLeaf(t *testing.T) {
	store := &fakeStore{}
	n := New(store, DefaultSimilarityThreshold)
	require.NoError(t, n.LoadCache(context.Background()))

	results, leaf, err := n.Normalize(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, leaf)
	assert.Empty(t, results)
}

func TestNormalize_AllLevelsMatchExisting(t *testing.T) {
	electronics := uuid.New()
	laptops := uuid.New()
	store := &fakeStore{all: []catalog.Category{
		{ID: electronics, Name: "Electronics"},
		{ID: laptops, Name: "Laptops", ParentID: &electronics},
	}}
	n := New(store, DefaultSimilarityThreshold)
	require.NoError(t, n.LoadCache(context.Background()))

	results, leaf, err := n.Normalize(context.Background(), []string{"Electronics", "Laptops"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, catalog.CategoryMatched, results[0].Action)
	assert.Equal(t, catalog.CategoryMatched, results[1].Action)
	require.NotNil(t, leaf)
	assert.Equal(t, laptops.String(), *leaf)
	assert.Empty(t, store.created)
}

func TestNormalize_MissingLeafCreatesNeedsReview(t *testing.T) {
	electronics := uuid.New()
	laptops := uuid.New()
	store := &fakeStore{all: []catalog.Category{
		{ID: electronics, Name: "Electronics"},
		{ID: laptops, Name: "Laptops", ParentID: &electronics},
	}}
	n := New(store, DefaultSimilarityThreshold)
	require.NoError(t, n.LoadCache(context.Background()))

	supplier := uuid.New()
	results, leaf, err := n.Normalize(context.Background(), []string{"Electronics", "Laptops", "Gaming"}, &supplier)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, catalog.CategoryMatched, results[0].Action)
	assert.Equal(t, catalog.CategoryMatched, results[1].Action)
	assert.Equal(t, catalog.CategoryCreated, results[2].Action)
	require.NotNil(t, leaf)
	assert.NotEqual(t, laptops.String(), *leaf)

	require.Len(t, store.created, 1)
	created := store.created[0]
	assert.True(t, created.NeedsReview)
	require.NotNil(t, created.ParentID)
	assert.Equal(t, laptops, *created.ParentID)
	require.NotNil(t, created.IntroducingSupplier)
	assert.Equal(t, supplier, *created.IntroducingSupplier)

	stats := n.Stats()
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 1, stats.Created)
	assert.Equal(t, 1, stats.ReviewQueue)
}

func TestNormalize_FuzzyMatchWithinThreshold(t *testing.T) {
	laptop := uuid.New()
	store := &fakeStore{all: []catalog.Category{
		{ID: laptop, Name: "Laptop"},
	}}
	n := New(store, DefaultSimilarityThreshold)
	require.NoError(t, n.LoadCache(context.Background()))

	results, leaf, err := n.Normalize(context.Background(), []string{"Laptops"}, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, catalog.CategoryMatched, results[0].Action)
	require.NotNil(t, leaf)
	assert.Equal(t, laptop.String(), *leaf)
}

func TestNormalize_SecondCallReusesCreatedCategoryFromCache(t *testing.T) {
	store := &fakeStore{}
	n := New(store, DefaultSimilarityThreshold)
	require.NoError(t, n.LoadCache(context.Background()))

	_, leaf1, err := n.Normalize(context.Background(), []string{"Outdoors"}, nil)
	require.NoError(t, err)
	require.Len(t, store.created, 1)

	results2, leaf2, err := n.Normalize(context.Background(), []string{"Outdoors"}, nil)
	require.NoError(t, err)
	assert.Equal(t, *leaf1, *leaf2)
	assert.Equal(t, catalog.CategoryMatched, results2[0].Action)
	assert.Len(t, store.created, 1)
}
