// Package sandbox gives every practice session its own throwaway SQL database.
// Learner queries run against in-memory SQLite, never against application data.
package sandbox

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

type key struct {
	userID    string
	sessionID string
}

// Manager caches one live database per (user, session) pair. Connections are
// reused across requests and dropped when the user logs out.
type Manager struct {
	mu    sync.Mutex
	conns map[key]*sql.DB
}

func NewManager() *Manager {
	return &Manager{conns: make(map[key]*sql.DB)}
}

// Get returns the sandbox database for the given user and session, opening a
// fresh one when none exists or the cached one has died.
func (m *Manager) Get(ctx context.Context, userID, sessionID string) (*sql.DB, error) {
	k := key{userID: userID, sessionID: sessionID}

	m.mu.Lock()
	defer m.mu.Unlock()

	if db, ok := m.conns[k]; ok {
		if err := db.PingContext(ctx); err == nil {
			return db, nil
		}
		db.Close()
		delete(m.conns, k)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sandbox database: %w", err)
	}
	// A pooled connection to :memory: would see an empty database, so the
	// sandbox is pinned to a single connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sandbox database: %w", err)
	}
	m.conns[k] = db
	return db, nil
}

// ExecScript runs a multi-statement SQL script (DDL or seed data) in the sandbox.
func (m *Manager) ExecScript(ctx context.Context, userID, sessionID, script string) error {
	db, err := m.Get(ctx, userID, sessionID)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("execute script: %w", err)
	}
	return nil
}

// Tables lists the user-created tables in the sandbox.
func (m *Manager) Tables(ctx context.Context, userID, sessionID string) ([]string, error) {
	db, err := m.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// RowCount returns the number of rows in one sandbox table.
func (m *Manager) RowCount(ctx context.Context, userID, sessionID, table string) (int, error) {
	db, err := m.Get(ctx, userID, sessionID)
	if err != nil {
		return 0, err
	}
	var n int
	// Table names come from sqlite_master, not from user input.
	if err := db.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return n, nil
}

// Query runs a read query and renders up to maxRows as a markdown table.
func (m *Manager) Query(ctx context.Context, userID, sessionID, query string, maxRows int) (string, error) {
	db, err := m.Get(ctx, userID, sessionID)
	if err != nil {
		return "", err
	}
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var records [][]string
	for rows.Next() && len(records) < maxRows {
		values := make([]any, len(cols))
		for i := range values {
			values[i] = new(sql.NullString)
		}
		if err := rows.Scan(values...); err != nil {
			return "", err
		}
		record := make([]string, len(cols))
		for i, v := range values {
			ns := v.(*sql.NullString)
			if ns.Valid {
				record[i] = ns.String
			} else {
				record[i] = "NULL"
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return renderTable(cols, records), nil
}

// CloseUser drops every sandbox belonging to the user.
func (m *Manager) CloseUser(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, db := range m.conns {
		if k.userID == userID {
			db.Close()
			delete(m.conns, k)
		}
	}
}

// CloseAll drops every sandbox. Called on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, db := range m.conns {
		db.Close()
		delete(m.conns, k)
	}
}

func renderTable(cols []string, records [][]string) string {
	widths := make([]int, len(cols))
	for i, c := range cols {
		widths[i] = len(c)
	}
	for _, rec := range records {
		for i, cell := range rec {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	writeRow := func(cells []string) {
		b.WriteString("|")
		for i, cell := range cells {
			fmt.Fprintf(&b, " %-*s |", widths[i], cell)
		}
		b.WriteString("\n")
	}

	writeRow(cols)
	b.WriteString("|")
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteString("|")
	}
	b.WriteString("\n")
	for _, rec := range records {
		writeRow(rec)
	}
	return strings.TrimRight(b.String(), "\n")
}
