package access

import (
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/cayenne"
	"github.com/syssam/cayenne/dialect/sql/adapter"
	"github.com/syssam/cayenne/dialect/sql/sqlerr"
	"github.com/syssam/cayenne/validation"
)

func TestCommitInsert(t *testing.T) {
	d, mock := mockDomain(t)
	c := d.NewContext()
	a, err := c.NewObject("Artist")
	require.NoError(t, err)
	require.NoError(t, c.Set(a, "artistName", "Dali"))
	p, err := c.NewObject("Painting")
	require.NoError(t, err)
	require.NoError(t, c.Set(p, "paintingTitle", "Sleep"))
	require.NoError(t, c.SetToOne(p, "toArtist", a))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO ARTIST (ARTIST_NAME) VALUES (?)")).
		WithArgs("Dali").
		WillReturnResult(sqlmock.NewResult(7, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO PAINTING (PAINTING_TITLE, ARTIST_ID) VALUES (?, ?)")).
		WithArgs("Sleep", int64(7)).
		WillReturnResult(sqlmock.NewResult(11, 1))
	mock.ExpectCommit()

	require.NoError(t, c.Commit(t.Context()))
	require.NoError(t, mock.ExpectationsWereMet())

	assert.Equal(t, cayenne.NewObjectID("Artist", 7), a.ObjectID())
	assert.Equal(t, cayenne.NewObjectID("Painting", 11), p.ObjectID())
	assert.Equal(t, int64(7), p.Get("artistId"))
	assert.Equal(t, int64(11), p.Get("paintingId"))
	assert.Equal(t, cayenne.Committed, a.State())
	assert.Equal(t, cayenne.Committed, p.State())
	assert.False(t, c.HasChanges())

	o, ok := c.Object(cayenne.NewObjectID("Painting", 11))
	require.True(t, ok)
	assert.Same(t, p, o)
	require.NoError(t, c.Commit(t.Context()), "nothing to commit")
}

func TestCommitInsertIdentityQuery(t *testing.T) {
	d, mock := mockDomain(t, WithAdapter(adapter.SQLServer))
	c := d.NewContext()
	a, err := c.NewObject("Artist")
	require.NoError(t, err)
	require.NoError(t, c.Set(a, "artistName", "Dali"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ARTIST").
		WithArgs("Dali").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("LastInsertId is not supported")))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT @@IDENTITY")).
		WillReturnRows(sqlmock.NewRows([]string{""}).AddRow([]byte("42")))
	mock.ExpectCommit()

	require.NoError(t, c.Commit(t.Context()))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, cayenne.NewObjectID("Artist", 42), a.ObjectID())
	assert.Equal(t, int64(42), a.Get("artistId"))
}

func TestCommitInsertWithoutKeyReadBack(t *testing.T) {
	d, mock := mockDomain(t, WithAdapter(adapter.Oracle))
	c := d.NewContext()
	a, err := c.NewObject("Artist")
	require.NoError(t, err)
	require.NoError(t, c.Set(a, "artistName", "Dali"))

	mock.ExpectBegin()
	mock.ExpectRollback()
	err = c.Commit(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "can not read back the generated key ARTIST_ID")
	require.NoError(t, mock.ExpectationsWereMet(), "nothing was sent before the failure")
	assert.True(t, a.ObjectID().IsTemporary())
}

func TestCommitUpdate(t *testing.T) {
	d, mock := mockDomain(t)
	c := d.NewContext()
	g := committed(t, c, "Gallery", int64(1), "Louvre")
	p := committed(t, c, "Painting", int64(3), "Sleep", nil, nil, nil, int64(1))
	relate(p, "toGallery", g)
	require.NoError(t, c.Set(p, "paintingTitle", "Swans"))
	require.NoError(t, c.SetToOne(p, "toGallery", nil))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE PAINTING SET PAINTING_TITLE = ?, GALLERY_ID = NULL WHERE PAINTING_ID = ?")).
		WithArgs("Swans", int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, c.Commit(t.Context()))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Nil(t, p.Get("galleryId"))
	assert.Equal(t, cayenne.Committed, p.State())
	assert.Equal(t, cayenne.Committed, g.State())
}

func TestCommitOptimisticLock(t *testing.T) {
	d, mock := mockDomain(t)
	c := d.NewContext()
	a := committed(t, c, "Artist", int64(7), "Dali", nil)
	require.NoError(t, c.Set(a, "artistName", "Picasso"))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE ARTIST SET ARTIST_NAME = ? WHERE ARTIST_ID = ?")).
		WithArgs("Picasso", int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := c.Commit(t.Context())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.ErrorIs(t, err, cayenne.ErrOptimisticLock)
	assert.ErrorIs(t, err, cayenne.ErrCommitFailed)
	var ce *cayenne.CommitError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "Artist", ce.Entity)
	assert.Equal(t, "update", ce.Op)
	assert.True(t, c.HasChanges(), "failed commits keep their changes")
	assert.Equal(t, cayenne.Modified, a.State())
}

func TestCommitConstraintError(t *testing.T) {
	d, mock := mockDomain(t)
	c := d.NewContext()
	a, err := c.NewObject("Artist")
	require.NoError(t, err)
	require.NoError(t, c.Set(a, "artistName", "Dali"))

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO ARTIST").
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'Dali'"})
	mock.ExpectRollback()

	err = c.Commit(t.Context())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
	assert.True(t, cayenne.IsConstraintError(err))
	assert.True(t, sqlerr.IsUniqueConstraintError(err))
	assert.True(t, a.ObjectID().IsTemporary())
	assert.Equal(t, cayenne.New, a.State())
}

func TestCommitDelete(t *testing.T) {
	d, mock := mockDomain(t)
	c := d.NewContext()
	a := committed(t, c, "Artist", int64(7), "Dali", nil)
	p := committed(t, c, "Painting", int64(3), "Sleep", nil, nil, int64(7), nil)
	relate(a, "paintings", p)
	expectNone(mock, "PAINTING_INFO", "PAINTING_ID", int64(3), "PAINTING_ID", "TEXT_REVIEW", "IMAGE_BLOB")
	expectNone(mock, "ARTIST_EXHIBIT", "ARTIST_ID", int64(7), "ARTIST_ID", "EXHIBIT_ID")
	require.NoError(t, c.Delete(t.Context(), a))

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM PAINTING WHERE PAINTING_ID = ?")).
		WithArgs(int64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM ARTIST WHERE ARTIST_ID = ?")).
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, c.Commit(t.Context()))
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, cayenne.Transient, a.State())
	assert.Nil(t, p.Context())
	assert.Empty(t, c.Objects())
}

func TestCommitValidation(t *testing.T) {
	d, mock := mockDomain(t, WithPolicy(validation.Policies{
		validation.RequireAttributes(),
		validation.CheckLengths(),
	}))
	c := d.NewContext()
	a, err := c.NewObject("Artist")
	require.NoError(t, err)
	p, err := c.NewObject("Painting")
	require.NoError(t, err)
	require.NoError(t, c.Set(p, "paintingTitle", "Sleep"))
	require.NoError(t, c.SetToOne(p, "toArtist", a))

	err = c.Commit(t.Context())
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet(), "invalid changes never reach the database")
	assert.ErrorIs(t, err, cayenne.ErrCommitFailed)
	require.True(t, cayenne.IsValidationError(err))
	var ve *cayenne.ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Failures, 1)
	assert.Equal(t, "Artist", ve.Failures[0].Entity)
	assert.Equal(t, "artistName", ve.Failures[0].Attribute)
	assert.True(t, c.HasChanges())
}
