package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noteModel struct {
	ID    int64  `gorm:"primaryKey"`
	Owner string `gorm:"index"`
	Title string
}

func (noteModel) TableName() string { return "notes" }

type noteMapper struct{}

func (noteMapper) ToDomain(e noteModel) (string, error) {
	if e.Title == "" {
		return "", fmt.Errorf("note %d has no title", e.ID)
	}
	return e.Title, nil
}

func newNoteRepository(t *testing.T, notes ...noteModel) Repository[string, noteModel] {
	t.Helper()
	ctx := context.Background()
	db, err := NewDatabase(ctx, "sqlite:///:memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Session(ctx).AutoMigrate(&noteModel{}))
	for _, n := range notes {
		require.NoError(t, db.Session(ctx).Create(&n).Error)
	}
	return NewRepository[string, noteModel](db, noteMapper{}, "note")
}

func TestRepository_Find(t *testing.T) {
	repo := newNoteRepository(t,
		noteModel{ID: 1, Owner: "a", Title: "first"},
		noteModel{ID: 2, Owner: "b", Title: "other"},
		noteModel{ID: 3, Owner: "a", Title: "second"},
	)
	ctx := context.Background()

	titles, err := repo.Find(ctx, NewQuery().Equal("owner", "a").Order("id", SortDesc))
	require.NoError(t, err)
	assert.Equal(t, []string{"second", "first"}, titles)

	titles, err = repo.Find(ctx, NewQuery().In("id", []int64{1, 2}).Order("id", SortAsc).Limit(1))
	require.NoError(t, err)
	assert.Equal(t, []string{"first"}, titles)

	count, err := repo.Count(ctx, NewQuery().Equal("owner", "a").Limit(1))
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRepository_FindEmpty(t *testing.T) {
	repo := newNoteRepository(t)
	titles, err := repo.Find(context.Background(), NewQuery().Equal("owner", "nobody"))
	require.NoError(t, err)
	assert.Empty(t, titles)
}

func TestRepository_MapError(t *testing.T) {
	repo := newNoteRepository(t, noteModel{ID: 1, Owner: "a"})
	_, err := repo.Find(context.Background(), NewQuery())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "map note")
}

func TestQuery_Immutable(t *testing.T) {
	base := NewQuery().Equal("owner", "a")
	withOrder := base.Order("id", SortAsc)
	_ = base.Equal("title", "x")

	assert.Len(t, base.conditions, 1)
	assert.Len(t, withOrder.orders, 1)
	assert.Empty(t, base.orders)
	assert.Equal(t, "DESC", SortDesc.String())
	assert.Equal(t, "ASC", SortAsc.String())
}
