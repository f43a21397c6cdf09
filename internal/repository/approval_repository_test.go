package repository_test

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/unclebandit/campaign-portal/internal/model"
	"github.com/unclebandit/campaign-portal/internal/repository"
)

// scriptedDriver answers the statements CreatePending issues. Every UPDATE
// reports that its affected row count is unavailable.
type scriptedDriver struct{}

func (scriptedDriver) Open(string) (driver.Conn, error) { return scriptedConn{}, nil }

type scriptedConn struct{}

func (scriptedConn) Prepare(query string) (driver.Stmt, error) { return scriptedStmt{query: query}, nil }
func (scriptedConn) Close() error                              { return nil }
func (scriptedConn) Begin() (driver.Tx, error)                 { return scriptedTx{}, nil }

type scriptedTx struct{}

func (scriptedTx) Commit() error   { return nil }
func (scriptedTx) Rollback() error { return nil }

type scriptedStmt struct {
	query string
}

func (s scriptedStmt) Close() error  { return nil }
func (s scriptedStmt) NumInput() int { return -1 }

func (s scriptedStmt) Exec(args []driver.Value) (driver.Result, error) {
	return unknownResult{}, nil
}

func (s scriptedStmt) Query(args []driver.Value) (driver.Rows, error) {
	switch {
	case strings.Contains(s.query, "FROM executions"):
		return &scriptedRows{cols: []string{"status", "output_content"}, row: []driver.Value{model.StatusDraft, "Hi {{first_name}}"}}, nil
	case strings.Contains(s.query, "INSERT INTO approvals"):
		return &scriptedRows{cols: []string{"created_at"}, row: []driver.Value{time.Now()}}, nil
	}
	return nil, errors.New("unexpected query: " + s.query)
}

type unknownResult struct{}

func (unknownResult) LastInsertId() (int64, error) { return 0, errors.New("not supported") }
func (unknownResult) RowsAffected() (int64, error) { return 0, errors.New("row count unavailable") }

type scriptedRows struct {
	cols []string
	row  []driver.Value
	done bool
}

func (r *scriptedRows) Columns() []string { return r.cols }
func (r *scriptedRows) Close() error      { return nil }

func (r *scriptedRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	copy(dest, r.row)
	r.done = true
	return nil
}

func init() {
	sql.Register("scripted-approvals", scriptedDriver{})
}

func TestCreatePendingReportsRowCountFailure(t *testing.T) {
	db, err := sql.Open("scripted-approvals", "")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	repo := &repository.ApprovalRepository{DB: db}

	_, err = repo.CreatePending(context.Background(), &model.Approval{
		ID:          "ap-1",
		ExecutionID: "e1",
		Token:       "tok-1",
		DueDate:     time.Now().Add(24 * time.Hour),
		RequestedBy: "owner@acme.test",
	}, "acct-1")
	if err == nil || !strings.Contains(err.Error(), "row count unavailable") {
		t.Fatalf("expected the row count failure to surface, got %v", err)
	}
}
