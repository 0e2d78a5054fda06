// Package testutil 提供基于内存 SQLite 的测试数据库与数据构造工具
package testutil

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"showplan/backend/internal/model"
)

var dbSeq atomic.Int64

// NewSQLiteDB 为每个测试创建独立的内存数据库并完成建表
//
// 表结构来自模型的 gorm 标签：唯一索引与 CHECK 约束（时间顺序、状态、快照原因）
// 与迁移脚本一致；外键不在 SQLite 上建立，引用完整性只由 integration 测试
// （repository/integration_test.go，PostgreSQL + 迁移脚本）覆盖。
func NewSQLiteDB(tb testing.TB) *gorm.DB {
	tb.Helper()

	dsn := fmt.Sprintf("file:showplan_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormLogger.Default.LogMode(gormLogger.Silent),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		tb.Fatalf("打开 SQLite 失败: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		tb.Fatalf("获取 sql.DB 失败: %v", err)
	}
	// 内存库在连接全部关闭后即销毁；单连接同时保证事务串行
	sqlDB.SetMaxOpenConns(1)
	tb.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&model.Schedule{},
		&model.ScheduleSnapshot{},
		&model.Show{},
		&model.ShowMC{},
		&model.ShowPlatform{},
	); err != nil {
		tb.Fatalf("建表失败: %v", err)
	}
	for _, kind := range model.LookupKinds {
		if err := db.Table(kind.Table()).AutoMigrate(&model.LookupEntry{}); err != nil {
			tb.Fatalf("建参考表 %s 失败: %v", kind.Table(), err)
		}
	}

	return db
}

// SeedLookup 写入一条参考数据，返回内部 ID（形如 <kind>-<uid>）
func SeedLookup(tb testing.TB, db *gorm.DB, kind model.LookupKind, uid, name string) string {
	tb.Helper()

	entry := &model.LookupEntry{ID: string(kind) + "-" + uid, UID: uid, Name: name}
	if err := db.WithContext(context.Background()).Table(kind.Table()).Create(entry).Error; err != nil {
		tb.Fatalf("写入参考数据 %s/%s 失败: %v", kind, uid, err)
	}
	return entry.ID
}

// SeedStandardLookups 写入计划文档测试常用的参考数据
//
//	client: acme        show_type: bau      show_status: confirmed   show_standard: std
//	mc: mc_a mc_b mc_c  platform: tiktok shopee   studio_room: room_1 room_2
func SeedStandardLookups(tb testing.TB, db *gorm.DB) {
	tb.Helper()

	SeedLookup(tb, db, model.LookupClient, "acme", "ACME 旗舰店")
	SeedLookup(tb, db, model.LookupShowType, "bau", "日常场")
	SeedLookup(tb, db, model.LookupShowStatus, "confirmed", "已确认")
	SeedLookup(tb, db, model.LookupShowStandard, "std", "标准")
	for _, mc := range []string{"mc_a", "mc_b", "mc_c"} {
		SeedLookup(tb, db, model.LookupMC, mc, mc)
	}
	for _, p := range []string{"tiktok", "shopee"} {
		SeedLookup(tb, db, model.LookupPlatform, p, p)
	}
	for _, room := range []string{"room_1", "room_2"} {
		SeedLookup(tb, db, model.LookupStudioRoom, room, room)
	}
}

// Ptr 返回任意值的指针
func Ptr[T any](v T) *T {
	return &v
}
