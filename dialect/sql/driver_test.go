package sql

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syssam/cayenne/dialect"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenDB(t *testing.T) {
	for _, d := range []string{dialect.Postgres, dialect.MySQL, dialect.SQLite, dialect.Oracle} {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		assert.Equal(t, d, OpenDB(d, db).Dialect())
		require.NoError(t, db.Close())
	}
}

func TestDriverQuery(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT ARTIST_NAME FROM ARTIST WHERE ARTIST_ID = \$1`).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows([]string{"ARTIST_NAME"}).AddRow("Dali").AddRow(nil))
	rows := &Rows{}
	require.NoError(t, drv.Query(ctx, "SELECT ARTIST_NAME FROM ARTIST WHERE ARTIST_ID = $1", []any{1}, rows))
	values, err := ScanValues(rows, 1)
	require.NoError(t, err)
	assert.Equal(t, [][]any{{"Dali"}, {nil}}, values)

	mock.ExpectQuery("SELECT").WillReturnError(errors.New("relation does not exist"))
	require.Error(t, drv.Query(ctx, "SELECT * FROM NOPE", []any{}, &Rows{}))

	err = drv.Query(ctx, "SELECT 1", []any{}, new(int))
	require.Error(t, err, "query requires *Rows")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverExec(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.MySQL, db)
	ctx := context.Background()

	mock.ExpectExec(`UPDATE GALLERY SET GALLERY_NAME = \? WHERE GALLERY_ID = \?`).
		WithArgs("Louvre", 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	var res Result
	require.NoError(t, drv.Exec(ctx, "UPDATE GALLERY SET GALLERY_NAME = ? WHERE GALLERY_ID = ?", []any{"Louvre", 3}, &res))
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	mock.ExpectExec("DELETE").WillReturnError(errors.New("Error 1451: cannot delete a parent row"))
	require.Error(t, drv.Exec(ctx, "DELETE FROM ARTIST", []any{}, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDriverTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO GALLERY").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectQuery("SELECT GALLERY_ID").WillReturnRows(sqlmock.NewRows([]string{"GALLERY_ID"}).AddRow(1))
		mock.ExpectCommit()
		tx, err := drv.Tx(ctx)
		require.NoError(t, err)
		require.NoError(t, tx.Exec(ctx, "INSERT INTO GALLERY (GALLERY_NAME) VALUES ('Tate')", []any{}, nil))
		rows := &Rows{}
		require.NoError(t, tx.Query(ctx, "SELECT GALLERY_ID FROM GALLERY", []any{}, rows))
		require.NoError(t, rows.Close())
		require.NoError(t, tx.Commit())
		require.NoError(t, mock.ExpectationsWereMet())
	})
	t.Run("rollback", func(t *testing.T) {
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO GALLERY").WillReturnError(errors.New("UNIQUE constraint failed"))
		mock.ExpectRollback()
		tx, err := drv.Tx(ctx)
		require.NoError(t, err)
		require.Error(t, tx.Exec(ctx, "INSERT INTO GALLERY (GALLERY_ID) VALUES (1)", []any{}, nil))
		require.NoError(t, tx.Rollback())
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestDriverCanceled(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mock.ExpectQuery("SELECT").WillReturnError(context.Canceled)
	assert.Error(t, OpenDB(dialect.Postgres, db).Query(ctx, "SELECT 1", []any{}, &Rows{}))
}

func TestOpenDBNormalizesDriverName(t *testing.T) {
	for name, want := range map[string]string{
		"pgx":     dialect.Postgres,
		"sqlite3": dialect.SQLite,
		"mssql":   dialect.SQLServer,
		"mysql":   dialect.MySQL,
	} {
		db, _, err := sqlmock.New()
		require.NoError(t, err)
		drv := OpenDB(name, db)
		assert.Equal(t, want, drv.Dialect(), name)
		require.NoError(t, db.Close())
	}
}

func TestExecStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.Postgres, db)

	stmt, err := Dialect(dialect.Postgres).Update("ARTIST").
		Set("ARTIST_NAME", "Dali").
		Where(EQ("ARTIST_ID", 7)).
		Build()
	require.NoError(t, err)
	mock.ExpectExec(`UPDATE ARTIST SET ARTIST_NAME = \$1 WHERE ARTIST_ID = \$2`).
		WithArgs("Dali", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	n, err := ExecStatement(context.Background(), drv, stmt)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestQueryStatementScanMaps(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.MySQL, db)

	stmt, err := Dialect(dialect.MySQL).Select("ARTIST_ID", "ARTIST_NAME").
		From(Table("ARTIST")).
		Where(HasPrefix("ARTIST_NAME", "D")).
		Build()
	require.NoError(t, err)
	mock.ExpectQuery(`SELECT ARTIST_ID, ARTIST_NAME FROM ARTIST WHERE ARTIST_NAME LIKE \?`).
		WithArgs("D%").
		WillReturnRows(sqlmock.NewRows([]string{"ARTIST_ID", "ARTIST_NAME"}).
			AddRow(1, "Dali").
			AddRow(2, []byte("Degas")))
	rows, err := QueryStatement(context.Background(), drv, stmt)
	require.NoError(t, err)
	got, err := ScanMaps(rows)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.EqualValues(t, 1, got[0]["ARTIST_ID"])
	assert.Equal(t, "Dali", got[0]["ARTIST_NAME"])
	assert.Equal(t, []byte("Degas"), got[1]["ARTIST_NAME"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestScanValues(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	drv := OpenDB(dialect.SQLite, db)

	mock.ExpectQuery("SELECT").
		WillReturnRows(sqlmock.NewRows([]string{"ARTIST_ID", "ARTIST_NAME", "EXTRA"}).
			AddRow(1, []byte("Dali"), "x"))
	rows, err := QueryStatement(context.Background(), drv, &Statement{SQL: "SELECT 1"})
	require.NoError(t, err)
	got, err := ScanValues(rows, 2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Len(t, got[0], 2)
	assert.EqualValues(t, 1, got[0][0])
	assert.Equal(t, []byte("Dali"), got[0][1])

	mock.ExpectQuery("SELECT").WillReturnRows(sqlmock.NewRows([]string{"A"}).AddRow(1))
	rows, err = QueryStatement(context.Background(), drv, &Statement{SQL: "SELECT 1"})
	require.NoError(t, err)
	_, err = ScanValues(rows, 2)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStatsDriver(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	var slow []string
	drv := NewStatsDriver(OpenDB(dialect.SQLite, db),
		WithSlowThreshold(-1),
		WithSlowQueryHook(func(_ context.Context, query string, _ []any, _ time.Duration) {
			slow = append(slow, query)
		}),
	)
	mock.ExpectExec("DELETE FROM ARTIST").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectQuery("SELECT").WillReturnError(errors.New("boom"))
	require.NoError(t, drv.Exec(context.Background(), "DELETE FROM ARTIST", []any{}, nil))
	require.Error(t, drv.Query(context.Background(), "SELECT 1", []any{}, &Rows{}))

	s := drv.QueryStats().Stats()
	assert.EqualValues(t, 1, s.TotalExecs)
	assert.EqualValues(t, 1, s.TotalQueries)
	assert.EqualValues(t, 1, s.Errors)
	assert.EqualValues(t, 2, s.SlowQueries)
	assert.Equal(t, []string{"DELETE FROM ARTIST", "SELECT 1"}, slow)
	require.NoError(t, mock.ExpectationsWereMet())
}
