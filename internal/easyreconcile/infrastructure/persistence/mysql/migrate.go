package mysql

import (
	"context"
	"fmt"

	"github.com/wyfcoding/easyreconcile/internal/easyreconcile/domain"
	"github.com/wyfcoding/easyreconcile/pkg/logger"
	"gorm.io/gorm"
)

// Migrate 建表并改写旧版本方法名
func Migrate(ctx context.Context, gdb *gorm.DB) error {
	err := gdb.WithContext(ctx).AutoMigrate(
		&domain.ReconcileTask{},
		&domain.ReconcileMethod{},
		&domain.History{},
		&domain.HistoryGroup{},
	)
	if err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	_, err = MigrateLegacyMethodNames(ctx, gdb)
	return err
}

// MigrateLedger 创建分录表，仅用于本地开发与测试；生产环境由账务系统维护
func MigrateLedger(ctx context.Context, gdb *gorm.DB) error {
	return gdb.WithContext(ctx).AutoMigrate(&MoveLineModel{})
}

// MigrateLegacyMethodNames 将以动作名保存的方法名改写为插件名，可重复执行
func MigrateLegacyMethodNames(ctx context.Context, gdb *gorm.DB) (int64, error) {
	var total int64
	for _, legacy := range []string{"action_rec_auto_partner", "action_rec_auto_name"} {
		res := gdb.WithContext(ctx).
			Model(&domain.ReconcileMethod{}).
			Where("name = ?", legacy).
			Update("name", domain.LegacyMethodNames[legacy])
		if res.Error != nil {
			return total, fmt.Errorf("rename legacy method %s: %w", legacy, res.Error)
		}
		total += res.RowsAffected
	}
	if total > 0 {
		logger.Info(ctx, "legacy reconcile method names migrated", "rows", total)
	}
	return total, nil
}
