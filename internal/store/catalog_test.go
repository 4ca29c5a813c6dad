package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-e/apiserver/types"
)

const testPackageID = "5c3e2a4b-7d1f-4b8e-8f6a-2d9c0e1b3a77"

func TestPackageCreateAndGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPackageRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT\s+INTO\s+packages`).
		WithArgs(sqlmock.AnyArg(), "Pro", "1.0", "All features", "$20", "", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	created, err := repo.Create(context.Background(), types.Package{Name: "Pro", Version: "1.0", Description: "All features", Price: "$20"})
	require.NoError(t, err)
	assert.True(t, validID(created.ID))

	mock.ExpectQuery(`FROM\s+packages\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(testPackageID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "version", "description", "price", "image_key", "created_at", "updated_at"}).
			AddRow(testPackageID, "Pro", "1.0", "All features", "$20", "packages/x.png", now, now))
	pkg, err := repo.Get(context.Background(), testPackageID)
	require.NoError(t, err)
	assert.Equal(t, "packages/x.png", pkg.ImageKey)
}

func TestPackageUpdate_NotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPackageRepository(db)

	mock.ExpectQuery(`(?s)UPDATE\s+packages.*RETURNING\s+created_at`).
		WillReturnError(sql.ErrNoRows)

	_, err := repo.Update(context.Background(), types.Package{ID: testPackageID})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPackageDelete(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPackageRepository(db)

	mock.ExpectExec(`DELETE\s+FROM\s+packages`).
		WithArgs(testPackageID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), testPackageID))

	mock.ExpectExec(`DELETE\s+FROM\s+packages`).
		WithArgs(testPackageID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.Delete(context.Background(), testPackageID), ErrNotFound)

	assert.ErrorIs(t, repo.Delete(context.Background(), "42"), ErrNotFound)
}

func TestPaymentCreate_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepository(db)

	mock.ExpectQuery(`INSERT\s+INTO\s+payments`).
		WithArgs("pi_123", int64(500), "usd", "secret", sqlmock.AnyArg()).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Create(context.Background(), types.Payment{PaymentIntentID: "pi_123", Amount: 500, Currency: "usd", ClientSecret: "secret"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestPaymentGetByIntentID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPaymentRepository(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM\s+payments\s+WHERE\s+payment_intent_id\s*=\s*\$1`).
		WithArgs("pi_123").
		WillReturnRows(sqlmock.NewRows([]string{"id", "payment_intent_id", "amount", "currency", "client_secret", "created_at"}).
			AddRow(int64(1), "pi_123", int64(500), "usd", "secret", now))

	payment, err := repo.GetByIntentID(context.Background(), "pi_123")
	require.NoError(t, err)
	assert.Equal(t, int64(500), payment.Amount)

	mock.ExpectQuery(`FROM\s+payments`).
		WithArgs("pi_missing").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.GetByIntentID(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContactCreateAndList(t *testing.T) {
	db, mock := newMock(t)
	repo := NewContactRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(`INSERT\s+INTO\s+contacts`).
		WithArgs(sqlmock.AnyArg(), "John", "john@example.com", "+1234567890", "Hello", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	_, err := repo.Create(context.Background(), types.Contact{Name: "John", Email: "john@example.com", Phone: "+1234567890", Message: "Hello"})
	require.NoError(t, err)

	mock.ExpectQuery(`FROM\s+contacts`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "phone", "message", "created_at"}).
			AddRow(testPackageID, "John", "john@example.com", "+1234567890", "Hello", now))
	contacts, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, "Hello", contacts[0].Message)
}
