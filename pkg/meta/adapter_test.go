package meta

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"ufsvault/pkg/types"
)

func TestGormLogger_IgnoresRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: newGormLogger(&buf)})
	require.NoError(t, err)

	metaDB := NewWithConn(db)
	require.NoError(t, metaDB.AutoMigrate(Models()...))
	repo := NewRepository(metaDB)
	ctx := context.Background()

	// 1. 未命中不产生日志
	rec, err := repo.FindImportByLinearHash(ctx, types.LinearHashOf([]byte("nothing")), "k")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = repo.GetRef(ctx, "missing")
	assert.ErrorIs(t, err, ErrRefNotFound)
	assert.Zero(t, buf.Len(), "unexpected log output: %s", buf.String())

	// 2. 真正的错误仍然记录
	err = db.Exec("SELECT * FROM no_such_table").Error
	require.Error(t, err)
	assert.Contains(t, buf.String(), "no_such_table")
}
