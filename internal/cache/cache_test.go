package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"inventory-tracker/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) ListProducts(ctx context.Context) ([]models.Product, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Product), args.Error(1)
}

func (m *MockSource) ListCategories(ctx context.Context) ([]models.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}

func (m *MockSource) GetSetting(ctx context.Context, key string) (*models.Setting, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Setting), args.Error(1)
}

func newTestCache(src Source) *Cache {
	return New(src, "default text", WithLogger(zap.NewNop()))
}

func TestRefreshProducts_KeepsRemoteOrder(t *testing.T) {
	src := new(MockSource)
	src.On("ListProducts", mock.Anything).Return([]models.Product{
		{ID: "p2", Name: "Newer"},
		{ID: "p1", Name: "Older"},
	}, nil)

	c := newTestCache(src)
	require.NoError(t, c.RefreshProducts(context.Background()))

	products := c.Products()
	require.Len(t, products, 2)
	assert.Equal(t, "p2", products[0].ID)
	src.AssertExpectations(t)
}

func TestRefreshProducts_FailureKeepsStale(t *testing.T) {
	src := new(MockSource)
	src.On("ListProducts", mock.Anything).Return([]models.Product{{ID: "p1"}}, nil).Once()
	src.On("ListProducts", mock.Anything).Return(nil, errors.New("backend down")).Once()

	c := newTestCache(src)
	require.NoError(t, c.RefreshProducts(context.Background()))

	err := c.RefreshProducts(context.Background())
	assert.ErrorContains(t, err, "backend down")
	assert.Len(t, c.Products(), 1)
}

func TestRefreshDescription_DefaultWhenMissing(t *testing.T) {
	src := new(MockSource)
	src.On("GetSetting", mock.Anything, models.DescriptionKey).Return(nil, nil)

	c := newTestCache(src)
	require.NoError(t, c.RefreshDescription(context.Background()))
	assert.Equal(t, "default text", c.Description().Value)
	assert.Nil(t, c.Description().UpdatedBy)
}

func TestRefresh_LoadsBothSlices(t *testing.T) {
	src := new(MockSource)
	src.On("ListProducts", mock.Anything).Return([]models.Product{{ID: "p1"}}, nil)
	src.On("ListCategories", mock.Anything).Return([]models.Category{{ID: "c1", Name: "Tea"}}, nil)

	c := newTestCache(src)
	require.NoError(t, c.Refresh(context.Background()))
	assert.Len(t, c.Products(), 1)
	assert.Len(t, c.Categories(), 1)
	src.AssertNotCalled(t, "GetSetting", mock.Anything, mock.Anything)
}

func TestRefresh_CategoryFailureKeepsOldCategories(t *testing.T) {
	src := new(MockSource)
	src.On("ListProducts", mock.Anything).Return([]models.Product{{ID: "p1"}}, nil)
	src.On("ListCategories", mock.Anything).Return(nil, errors.New("timeout"))

	c := newTestCache(src)
	c.AddCategory(models.Category{ID: "c0", Name: "Old"})

	err := c.Refresh(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []models.Category{{ID: "c0", Name: "Old"}}, c.Categories())
}

func TestApplyQuantityPatch(t *testing.T) {
	src := new(MockSource)
	src.On("ListProducts", mock.Anything).Return([]models.Product{
		{ID: "p1", Name: "Tea", SKU: "T1", Inventory1F: 4, Inventory2F: 5},
	}, nil)

	c := newTestCache(src)
	require.NoError(t, c.RefreshProducts(context.Background()))
	before := c.Products()

	at := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	require.True(t, c.ApplyQuantityPatch("p1", models.InventoryWarehouse, 9, "Ming", at))

	p, ok := c.Product("p1")
	require.True(t, ok)
	assert.Equal(t, 9, p.InventoryWarehouse)
	assert.Equal(t, at, *p.InventoryWarUpdatedAt)
	assert.Equal(t, "Ming", *p.InventoryWarUpdatedBy)
	assert.Equal(t, "Ming", *p.LastModifiedBy)
	assert.Equal(t, 4, p.Inventory1F)
	assert.Equal(t, 5, p.Inventory2F)
	assert.Nil(t, p.Inventory1FUpdatedAt)
	assert.Equal(t, "Tea", p.Name)

	// earlier snapshots are not aliased
	assert.Equal(t, 0, before[0].InventoryWarehouse)
	assert.Nil(t, before[0].LastModifiedBy)
}

func TestApplyQuantityPatch_UnknownProduct(t *testing.T) {
	c := newTestCache(new(MockSource))
	assert.False(t, c.ApplyQuantityPatch("missing", models.Inventory1F, 1, "Ming", time.Now()))
}

func TestAddCategory_KeepsNameOrder(t *testing.T) {
	c := newTestCache(new(MockSource))
	c.AddCategory(models.Category{ID: "c1", Name: "Tea"})
	c.AddCategory(models.Category{ID: "c2", Name: "Coffee"})

	cats := c.Categories()
	assert.Equal(t, "Coffee", cats[0].Name)
	assert.Equal(t, "Tea", cats[1].Name)

	require.True(t, c.RenameCategory("c1", "Beans"))
	assert.Equal(t, "Beans", c.Categories()[0].Name)
}

func TestAddProduct_Prepends(t *testing.T) {
	c := newTestCache(new(MockSource))
	c.AddProduct(models.Product{ID: "p1"})
	c.AddProduct(models.Product{ID: "p2"})
	assert.Equal(t, "p2", c.Products()[0].ID)
}

func TestClear(t *testing.T) {
	c := newTestCache(new(MockSource))
	c.AddProduct(models.Product{ID: "p1"})
	c.AddCategory(models.Category{ID: "c1", Name: "Tea"})
	c.SetDescription(models.Setting{Key: models.DescriptionKey, Value: "custom"})

	c.Clear()
	assert.Empty(t, c.Products())
	assert.Empty(t, c.Categories())
	assert.Equal(t, "default text", c.Description().Value)
}
