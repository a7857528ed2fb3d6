package sqlexec

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/ridelens/ridelens/internal/query"
)

func TestExecuteReturnsOrderedTypedRows(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := newExecutor(t, db, Options{})

	statement := "SELECT vehicle_type, COUNT(*) AS trips, SUM(booking_value) AS revenue FROM gold.cleaned_dataset GROUP BY vehicle_type LIMIT 10"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(statement)).WillReturnRows(
		sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("vehicle_type").OfType("VARCHAR", ""),
			sqlmock.NewColumn("trips").OfType("INT8", int64(0)),
			sqlmock.NewColumn("revenue").OfType("NUMERIC", ""),
		).
			AddRow("Auto", int64(12), "1534.50").
			AddRow("eBike", int64(3), nil),
	)
	mock.ExpectRollback()

	result, err := exec.Execute(context.Background(), statement)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	assertSQLMock(t, mock)

	if !reflect.DeepEqual(result.Columns, []string{"vehicle_type", "trips", "revenue"}) {
		t.Fatalf("columns = %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(result.Rows))
	}
	want := query.Row{
		{Name: "vehicle_type", Value: query.TextValue("Auto")},
		{Name: "trips", Value: query.IntValue(12)},
		{Name: "revenue", Value: query.FloatValue(1534.5)},
	}
	if !reflect.DeepEqual(result.Rows[0], want) {
		t.Fatalf("row 0 = %+v, want %+v", result.Rows[0], want)
	}
	if result.Rows[1][2].Value.Kind != query.KindNull {
		t.Fatalf("revenue of row 1 = %+v, want null", result.Rows[1][2].Value)
	}
	if result.Duration < 0 {
		t.Fatalf("duration = %s", result.Duration)
	}
}

func TestExecuteSuffixesDuplicateColumns(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := newExecutor(t, db, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").WillReturnRows(
		sqlmock.NewRowsWithColumnDefinition(
			sqlmock.NewColumn("count").OfType("INT8", int64(0)),
			sqlmock.NewColumn("count").OfType("INT8", int64(0)),
		).AddRow(int64(10), int64(7)),
	)
	mock.ExpectRollback()

	result, err := exec.Execute(context.Background(), "SELECT COUNT(*), COUNT(booking_value) FROM gold.cleaned_dataset LIMIT 10")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	assertSQLMock(t, mock)
	if !reflect.DeepEqual(result.Columns, []string{"count", "count_2"}) {
		t.Fatalf("columns = %v", result.Columns)
	}
	if got := result.Rows[0][1]; got.Name != "count_2" || got.Value.Int != 7 {
		t.Fatalf("second field = %+v", got)
	}
}

func TestExecuteReturnsEmptyRowsNotNil(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := newExecutor(t, db, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT booking_id").WillReturnRows(
		sqlmock.NewRowsWithColumnDefinition(sqlmock.NewColumn("booking_id").OfType("TEXT", "")),
	)
	mock.ExpectRollback()

	result, err := exec.Execute(context.Background(), "SELECT booking_id FROM gold.cleaned_dataset WHERE 1=0 LIMIT 10")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	assertSQLMock(t, mock)
	if result.Rows == nil || len(result.Rows) != 0 {
		t.Fatalf("rows = %#v, want empty non-nil slice", result.Rows)
	}
}

func TestExecuteWrapsDriverFailure(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := newExecutor(t, db, Options{})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT fare").WillReturnError(errors.New(`column "fare" does not exist`))
	mock.ExpectRollback()

	_, err := exec.Execute(context.Background(), "SELECT fare FROM gold.cleaned_dataset LIMIT 10")
	if err == nil {
		t.Fatal("expected error")
	}
	assertSQLMock(t, mock)

	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) {
		t.Fatalf("error = %T, want *query.ExecutionError", err)
	}
	if execErr.Err.Error() != `column "fare" does not exist` {
		t.Fatalf("driver error = %q", execErr.Err.Error())
	}
	if errors.Is(err, query.ErrTimeout) {
		t.Fatal("driver failure must not be a timeout")
	}
}

func TestExecuteFailsWhenTransactionCannotStart(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := newExecutor(t, db, Options{})

	mock.ExpectBegin().WillReturnError(errors.New("connection reset"))

	_, err := exec.Execute(context.Background(), "SELECT 1 LIMIT 10")
	var execErr *query.ExecutionError
	if !errors.As(err, &execErr) || execErr.Op != "begin transaction" {
		t.Fatalf("error = %v, want begin transaction failure", err)
	}
	assertSQLMock(t, mock)
}

func TestExecuteTimesOut(t *testing.T) {
	db, mock := newSQLMock(t)
	exec := newExecutor(t, db, Options{Timeout: 20 * time.Millisecond})

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").WillDelayFor(time.Second).WillReturnRows(
		sqlmock.NewRowsWithColumnDefinition(sqlmock.NewColumn("n").OfType("INT8", int64(0))).AddRow(int64(1)),
	)

	if _, err := exec.Execute(context.Background(), "SELECT 1 AS n LIMIT 10"); !errors.Is(err, query.ErrTimeout) {
		t.Fatalf("error = %v, want ErrTimeout", err)
	}
}

func TestExecuteReportsBusyWhenNoSlotFrees(t *testing.T) {
	db, _ := newSQLMock(t)
	exec := newExecutor(t, db, Options{MaxConcurrent: 1})

	if err := exec.slots.Acquire(context.Background(), 1); err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer exec.slots.Release(1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := exec.Execute(ctx, "SELECT 1 LIMIT 10"); !errors.Is(err, query.ErrBusy) {
		t.Fatalf("error = %v, want ErrBusy", err)
	}
}

func TestNewAppliesDefaults(t *testing.T) {
	db, _ := newSQLMock(t)
	exec := newExecutor(t, db, Options{})
	if exec.timeout != DefaultTimeout || !exec.txOptions.ReadOnly {
		t.Fatalf("defaults = %s read-only=%v", exec.timeout, exec.txOptions.ReadOnly)
	}

	exec = newExecutor(t, db, Options{TxOptions: &sql.TxOptions{}})
	if exec.txOptions.ReadOnly {
		t.Fatal("explicit TxOptions must be kept")
	}

	if _, err := New(nil, Options{}); err == nil {
		t.Fatal("expected error for nil database")
	}
}

func newExecutor(t *testing.T, db *sql.DB, opts Options) *Executor {
	t.Helper()
	exec, err := New(db, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return exec
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
