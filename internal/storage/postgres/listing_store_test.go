package postgres

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/pm-internship-scraper/internal/internship"
)

type sequenceIDs struct {
	next int
}

func (s *sequenceIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("id-%d", s.next), nil
}

func expectedArgs(id string, l internship.Listing) []any {
	return []any{
		id, l.Title, l.Organization, l.Description, l.Location, l.SkillsRequired,
		l.Duration, l.Stipend, l.ImageURL, l.CompanyLogo, l.Timestamp,
	}
}

func TestInsertListingsCommitsOneTransaction(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "", &sequenceIDs{})
	require.NoError(t, err)

	listings := []internship.Listing{
		internship.NewListing("Policy Research Intern", 1700000000000),
		internship.NewListing("PM Internship", 1700000000001),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO internships").
		WithArgs(expectedArgs("id-1", listings[0])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO internships").
		WithArgs(expectedArgs("id-2", listings[1])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	ids, err := store.InsertListings(context.Background(), listings)
	require.NoError(t, err)
	require.Equal(t, []string{"id-1", "id-2"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertListingsRollsBackOnFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "internships", &sequenceIDs{})
	require.NoError(t, err)

	listings := []internship.Listing{
		internship.NewListing("Policy Research Intern", 1),
		internship.NewListing("Data Analyst Intern", 2),
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO internships").
		WithArgs(expectedArgs("id-1", listings[0])...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("INSERT INTO internships").
		WithArgs(expectedArgs("id-2", listings[1])...).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	ids, err := store.InsertListings(context.Background(), listings)
	require.Error(t, err)
	require.Contains(t, err.Error(), "disk full")
	require.Nil(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertListingsEmptyBatchOpensNothing(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "internships", &sequenceIDs{})
	require.NoError(t, err)

	ids, err := store.InsertListings(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertListingsBeginFailure(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "internships", &sequenceIDs{})
	require.NoError(t, err)

	mock.ExpectBegin().WillReturnError(errors.New("connection refused"))
	_, err = store.InsertListings(context.Background(), []internship.Listing{internship.NewListing("Policy Intern", 1)})
	require.ErrorContains(t, err, "begin transaction")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store, err := NewListingStoreWithPool(mock, "pm_listings", &sequenceIDs{})
	require.NoError(t, err)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS pm_listings").
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	require.NoError(t, store.EnsureSchema(context.Background()))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConstructorValidation(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	_, err = NewListingStoreWithPool(nil, "", &sequenceIDs{})
	require.Error(t, err)
	_, err = NewListingStoreWithPool(mock, "", nil)
	require.Error(t, err)
	_, err = NewListingStoreWithPool(mock, "bad-name; DROP", &sequenceIDs{})
	require.Error(t, err)

	_, err = NewListingStore(context.Background(), Config{}, &sequenceIDs{})
	require.ErrorContains(t, err, "postgres.dsn is required")
}

func TestCloseNilSafe(t *testing.T) {
	t.Parallel()

	var store *ListingStore
	require.NoError(t, store.Close())
}
