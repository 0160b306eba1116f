package store

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/soundleaf/soundleaf/internal/catalog"
)

func TestSeriesID(t *testing.T) {
	s, mock := newMockStore(t)

	seriesID := int64(5)
	mock.ExpectQuery(`SELECT series_id FROM audiobook`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"series_id"}).AddRow(&seriesID))

	got, err := s.SeriesID(context.Background(), 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, int64(5), *got)
}

func TestSeriesIDMissingAudiobook(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT series_id FROM audiobook`).
		WillReturnError(pgx.ErrNoRows)

	got, err := s.SeriesID(context.Background(), 42)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestRelatedEntityIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT author_id FROM audiobook_author WHERE audiobook_id = \$1`).
		WithArgs(int64(42)).
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).
			AddRow(int64(1)).
			AddRow(int64(2)))

	ids, err := s.RelatedEntityIDs(context.Background(), catalog.RelationAuthor, 42)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2}, ids)
}

func TestRelatedEntityIDsRejectsSeries(t *testing.T) {
	s, _ := newMockStore(t)

	_, err := s.RelatedEntityIDs(context.Background(), catalog.RelationSeries, 42)
	require.ErrorContains(t, err, "no join table")
}

func TestSubscriberIDs(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT user_id FROM user_keyword_notification WHERE keyword_id = \$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"user_id"}).AddRow(int64(100)))

	ids, err := s.SubscriberIDs(context.Background(), catalog.RelationKeyword, 7)
	require.NoError(t, err)
	require.Equal(t, []int64{100}, ids)
}

func TestUpsertNotificationsMergesReasons(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectBegin()
	// The upsert computes the distinct union of old and new reasons, so a
	// repeated pass can never duplicate an entry.
	mock.ExpectExec(`array_agg\(DISTINCT reason\)`).
		WithArgs(int64(100), int64(42), "match_author").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`array_agg\(DISTINCT reason\)`).
		WithArgs(int64(101), int64(42), "match_author").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.UpsertNotifications(context.Background(), []int64{100, 101}, 42, catalog.ReasonMatchAuthor)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertNotificationsNoUsers(t *testing.T) {
	s, mock := newMockStore(t)

	require.NoError(t, s.UpsertNotifications(context.Background(), nil, 42, catalog.ReasonMatchSeries))
	require.NoError(t, mock.ExpectationsWereMet())
}
