package db

import (
	"context"

	"gorm.io/gorm"
)

type txKey struct{}

// ContextWithTx 将事务句柄放入 context，仓储通过 Conn 取回
func ContextWithTx(ctx context.Context, tx *gorm.DB) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// TxFromContext 取出 context 中的事务句柄
func TxFromContext(ctx context.Context) (*gorm.DB, bool) {
	tx, ok := ctx.Value(txKey{}).(*gorm.DB)
	return tx, ok && tx != nil
}

// Conn 返回 context 中的事务，若不存在则返回 fallback
func Conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := TxFromContext(ctx); ok {
		return tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}

// WithTx 在事务中执行函数，出错自动回滚；已处于事务中时直接复用外层事务
func WithTx(ctx context.Context, gdb *gorm.DB, fn func(ctx context.Context) error) error {
	if _, ok := TxFromContext(ctx); ok {
		return fn(ctx)
	}
	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ContextWithTx(ctx, tx))
	})
}

// WithTx 在事务中执行函数
func (d *DB) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return WithTx(ctx, d.DB, fn)
}
