// Package dbtest opens in-memory SQLite databases carrying the same tables as
// the Postgres migrations, for repository and service tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/replenish-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE replenishment_requests (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  shop_id TEXT NOT NULL,
  dc_id TEXT NOT NULL,
  requested_by TEXT,
  status TEXT NOT NULL DEFAULT 'requested',
  notes TEXT,
  expected_delivery DATETIME,
  received_at DATETIME,
  total_items INTEGER NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE replenishment_items (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL REFERENCES replenishment_requests(id) ON DELETE CASCADE,
  product_id TEXT NOT NULL,
  size TEXT NOT NULL DEFAULT '',
  quantity_requested INTEGER NOT NULL CHECK (quantity_requested > 0),
  quantity_fulfilled INTEGER NOT NULL DEFAULT 0 CHECK (quantity_fulfilled >= 0 AND quantity_fulfilled <= quantity_requested),
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE replenishment_status_logs (
  id TEXT PRIMARY KEY,
  request_id TEXT NOT NULL REFERENCES replenishment_requests(id) ON DELETE CASCADE,
  sequence INTEGER NOT NULL,
  from_status TEXT,
  to_status TEXT NOT NULL,
  changed_by TEXT,
  notes TEXT,
  created_at DATETIME,
  UNIQUE (request_id, sequence)
);`,
	`CREATE TABLE inventory_records (
  id TEXT PRIMARY KEY,
  client_id TEXT NOT NULL,
  dc_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  size TEXT NOT NULL DEFAULT '',
  quantity INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
  low_stock_threshold INTEGER NOT NULL DEFAULT 0 CHECK (low_stock_threshold >= 0),
  created_at DATETIME,
  updated_at DATETIME,
  UNIQUE (client_id, dc_id, product_id, size)
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  created_at DATETIME,
  published_at DATETIME,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT
);`,
	`CREATE TABLE outbox_dlq (
  id TEXT PRIMARY KEY,
  event_id TEXT NOT NULL UNIQUE,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload_json TEXT NOT NULL,
  error_reason TEXT NOT NULL,
  error_message TEXT,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  failed_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a client over a fresh, isolated in-memory database. The pool
// is pinned to one connection so concurrent transactions queue behind each
// other the way row locks make them queue in Postgres.
func Open(t testing.TB) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:replenish_%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig())
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return db.FromGorm(conn)
}
