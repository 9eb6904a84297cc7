package db

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/ThanosKa/magic-room-sub001/internal/models"
)

func NewBunPostgresClient(connectionString string) *bun.DB {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(connectionString)))

	db := bun.NewDB(sqldb, pgdialect.New())

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	return db
}

// InitSchema creates the tables and indexes the service relies on. Safe to
// run on every startup.
func InitSchema(ctx context.Context, db *bun.DB) error {
	for _, model := range []any{
		(*models.UserDB)(nil),
		(*models.TransactionDB)(nil),
		(*models.GenerationDB)(nil),
	} {
		if _, err := db.NewCreateTable().
			Model(model).
			IfNotExists().
			Exec(ctx); err != nil {
			return err
		}
	}

	if _, err := db.NewCreateIndex().
		Model((*models.UserDB)(nil)).
		Index("idx_users_clerk_id").
		Column("clerk_id").
		Unique().
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	if _, err := db.NewCreateIndex().
		Model((*models.TransactionDB)(nil)).
		Index("idx_transactions_user_id").
		Column("user_id").
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := db.NewCreateIndex().
		Model((*models.GenerationDB)(nil)).
		Index("idx_generations_user_id").
		Column("user_id").
		IfNotExists().
		Exec(ctx)
	return err
}
