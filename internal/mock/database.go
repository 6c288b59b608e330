// Package mock contains utilities for tests.
package mock

import (
	"context"
	"database/sql"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

// Connection is the mock version for database.Connection.
type Connection struct {
	db      *sql.DB
	SQLMock sqlmock.Sqlmock
}

func (m Connection) CreateContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := 5 * time.Second
	return context.WithTimeout(ctx, timeout)
}

func (m Connection) DB() *sql.DB {
	return m.db
}

func (m Connection) Close() {
	_ = m.DB().Close()
}

// MustCreateConnectionMock creates a sqlmock backed connection, panicking on failure.
func MustCreateConnectionMock() Connection {
	db, mock, err := sqlmock.New()
	if err != nil {
		panic(err)
	}
	return Connection{
		db:      db,
		SQLMock: mock,
	}
}

// DBResultOption registers an expectation on the mocked connection.
type DBResultOption func(dbConn Connection)

// MockDBResults applies the given expectations in order.
func MockDBResults(dbConn Connection, opts ...DBResultOption) {
	for _, opt := range opts {
		opt(dbConn)
	}
}

// WithBegin expects a transaction to be opened.
func WithBegin() DBResultOption {
	return func(dbConn Connection) {
		dbConn.SQLMock.ExpectBegin()
	}
}

// WithCommit expects the open transaction to be committed.
func WithCommit() DBResultOption {
	return func(dbConn Connection) {
		dbConn.SQLMock.ExpectCommit()
	}
}

// WithRollback expects the open transaction to be rolled back.
func WithRollback() DBResultOption {
	return func(dbConn Connection) {
		dbConn.SQLMock.ExpectRollback()
	}
}
