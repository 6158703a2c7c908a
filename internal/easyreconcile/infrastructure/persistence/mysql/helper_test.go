package mysql

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/easyreconcile/pkg/db"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(context.Background(), db.Config{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })

	require.NoError(t, Migrate(context.Background(), gdb))
	require.NoError(t, MigrateLedger(context.Background(), gdb))
	return gdb
}

func ptr(v uint64) *uint64 { return &v }

func seedLine(t *testing.T, gdb *gorm.DB, id, account uint64, rec, partial *uint64) {
	t.Helper()
	require.NoError(t, gdb.Create(&MoveLineModel{
		ID:                 id,
		AccountID:          account,
		Debit:              decimal.NewFromInt(100),
		Credit:             decimal.Zero,
		ReconcileID:        rec,
		ReconcilePartialID: partial,
	}).Error)
}
