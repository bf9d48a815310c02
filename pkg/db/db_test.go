package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type note struct {
	ID   uint `gorm:"primaryKey"`
	Body string
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	d, err := Init(Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	require.NoError(t, d.AutoMigrate(&note{}))
	return d
}

func TestInitRejectsUnknownDriver(t *testing.T) {
	_, err := Init(Config{Driver: "oracle"})
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestWithTxCommitsAndRollsBack(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	require.NoError(t, d.WithTx(ctx, func(ctx context.Context) error {
		return Conn(ctx, d.DB).Create(&note{Body: "kept"}).Error
	}))

	boom := errors.New("boom")
	err := d.WithTx(ctx, func(ctx context.Context) error {
		if err := Conn(ctx, d.DB).Create(&note{Body: "discarded"}).Error; err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var bodies []string
	require.NoError(t, d.Model(&note{}).Order("id").Pluck("body", &bodies).Error)
	assert.Equal(t, []string{"kept"}, bodies)
}

func TestWithTxJoinsOuterTransaction(t *testing.T) {
	d := openTestDB(t)
	ctx := context.Background()

	var inner *gorm.DB
	require.NoError(t, d.WithTx(ctx, func(outerCtx context.Context) error {
		outer, ok := TxFromContext(outerCtx)
		require.True(t, ok)
		return WithTx(outerCtx, d.DB, func(innerCtx context.Context) error {
			inner, _ = TxFromContext(innerCtx)
			assert.Same(t, outer, inner)
			return nil
		})
	}))
	assert.NotNil(t, inner)
}

func TestConnFallsBackOutsideTransaction(t *testing.T) {
	d := openTestDB(t)
	_, ok := TxFromContext(context.Background())
	assert.False(t, ok)
	assert.NotNil(t, Conn(context.Background(), d.DB))
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file::memory:?cache=shared&_time_format=sqlite", sqliteDSN(""))
	assert.Equal(t, "crm.db?_time_format=sqlite", sqliteDSN("crm.db"))
	assert.Equal(t, "x.db?_time_format=sqlite&mode=ro", sqliteDSN("x.db?_time_format=sqlite&mode=ro"))
}
