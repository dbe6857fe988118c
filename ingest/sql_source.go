/*
Copyright (C) 2026  Markovchain Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package ingest

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"

	"github.com/launix-de/markovchain/errs"
)

// OpenMySQL opens a connection pool against a MySQL-compatible
// relational message archive. Grounded on the teacher's
// storage/mysql_import.go openMySQL helper almost verbatim: same DSN
// shape, same pool limits, same connect-time ping.
func OpenMySQL(ctx context.Context, host string, port int, user, password, database string) (*sql.DB, error) {
	addr := host + ":" + strconv.Itoa(port)
	dsn := user
	if password != "" {
		dsn += ":" + password
	}
	dsn += "@tcp(" + addr + ")/" + database + "?parseTime=true&multiStatements=true&interpolateParams=true"
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "opening mysql training archive", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.Io, "pinging mysql training archive", err)
	}
	return db, nil
}

// OpenPostgres opens a connection pool against a Postgres-flavored
// relational message archive, the alternative backend the rest of the
// example pack favors over MySQL for this concern.
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "opening postgres training archive", err)
	}
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(8)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.Io, "pinging postgres training archive", err)
	}
	return db, nil
}

// SQLSource streams Messages off the result of a caller-supplied
// query against the relational message archive (spec §1 "the
// relational message archive [is an] external collaborator"; this
// source is the one place the engine reads from it, for bulk
// retraining from history).
type SQLSource struct {
	rows *sql.Rows
}

// NewSQLSource runs query (expected to select exactly one text
// column: the message body) and returns a streaming source over its
// result set.
func NewSQLSource(ctx context.Context, db *sql.DB, query string, args ...any) (*SQLSource, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "querying training records", err)
	}
	return &SQLSource{rows: rows}, nil
}

func (s *SQLSource) Next() (Message, bool, error) {
	if !s.rows.Next() {
		if err := s.rows.Err(); err != nil {
			return Message{}, false, errs.Wrap(errs.Io, "reading training record rows", err)
		}
		return Message{}, true, nil
	}
	var text string
	if err := s.rows.Scan(&text); err != nil {
		return Message{}, false, errs.Wrap(errs.Io, "scanning training record row", err)
	}
	return Message{Text: text}, false, nil
}

func (s *SQLSource) Close() error {
	return s.rows.Close()
}
