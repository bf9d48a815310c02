// Package mysql 提供 CRM 仓储接口的 GORM 实现，支持 MySQL、PostgreSQL 与 SQLite。
package mysql

import (
	"context"
	"errors"
	"strings"

	"github.com/wyfcoding/crm/internal/crm/domain"
	"github.com/wyfcoding/crm/pkg/db"
	"gorm.io/gorm"
)

type txManager struct {
	db *gorm.DB
}

// NewTxManager 创建事务管理器
func NewTxManager(gdb *gorm.DB) domain.TxManager {
	return &txManager{db: gdb}
}

// WithTx 实现 domain.TxManager.WithTx
func (m *txManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return db.WithTx(ctx, m.db, fn)
}

// supportsRowLock SQLite 没有行锁，写事务本身串行
func supportsRowLock(conn *gorm.DB) bool {
	return conn.Dialector.Name() != "sqlite"
}

func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "duplicate key")
}

func isForeignKeyViolation(err error) bool {
	if errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}
