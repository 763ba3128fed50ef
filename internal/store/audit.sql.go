// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package store

import (
	"context"
	"database/sql"
	"time"
)

const auditColumns = `id, level, category, message, user_id, ip_address, metadata, created_at`

func scanAuditEntry(row rowScanner) (AuditEntry, error) {
	var a AuditEntry
	err := row.Scan(
		&a.ID,
		&a.Level,
		&a.Category,
		&a.Message,
		&a.UserID,
		&a.IpAddress,
		&a.Metadata,
		&a.CreatedAt,
	)
	return a, err
}

const createAuditEntry = `INSERT INTO audit_log (level, category, message, user_id, ip_address, metadata, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + auditColumns

// CreateAuditEntryParams holds the values for CreateAuditEntry.
type CreateAuditEntryParams struct {
	Level     string
	Category  string
	Message   string
	UserID    sql.NullInt64
	IpAddress string
	Metadata  string
	CreatedAt time.Time
}

func (q *Queries) CreateAuditEntry(ctx context.Context, arg CreateAuditEntryParams) (AuditEntry, error) {
	row := q.db.QueryRowContext(ctx, createAuditEntry,
		arg.Level,
		arg.Category,
		arg.Message,
		arg.UserID,
		arg.IpAddress,
		arg.Metadata,
		arg.CreatedAt,
	)
	return scanAuditEntry(row)
}

const listAuditEntries = `SELECT ` + auditColumns + ` FROM audit_log
ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`

// ListAuditEntriesParams holds the values for ListAuditEntries.
type ListAuditEntriesParams struct {
	Limit  int64
	Offset int64
}

func (q *Queries) ListAuditEntries(ctx context.Context, arg ListAuditEntriesParams) ([]AuditEntry, error) {
	rows, err := q.db.QueryContext(ctx, listAuditEntries, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []AuditEntry
	for rows.Next() {
		a, err := scanAuditEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const countAuditEntries = `SELECT COUNT(*) FROM audit_log`

func (q *Queries) CountAuditEntries(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRowContext(ctx, countAuditEntries).Scan(&count)
	return count, err
}

const deleteAuditEntriesBefore = `DELETE FROM audit_log WHERE created_at < ?`

func (q *Queries) DeleteAuditEntriesBefore(ctx context.Context, createdAt time.Time) (int64, error) {
	result, err := q.db.ExecContext(ctx, deleteAuditEntriesBefore, createdAt)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
