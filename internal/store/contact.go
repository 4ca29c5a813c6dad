package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/tech-e/apiserver/types"
)

// ContactRepository stores contact-form messages.
type ContactRepository struct {
	db *sql.DB
}

func NewContactRepository(db *sql.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, contact types.Contact) (types.Contact, error) {
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	contact.CreatedAt = time.Now().UTC()

	const query = `
		INSERT INTO contacts (id, name, email, phone, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		contact.ID,
		contact.Name,
		contact.Email,
		contact.Phone,
		contact.Message,
		contact.CreatedAt,
	); err != nil {
		return types.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return contact, nil
}

func (r *ContactRepository) Get(ctx context.Context, id string) (types.Contact, error) {
	if !validID(id) {
		return types.Contact{}, ErrNotFound
	}
	const query = `
		SELECT id, name, email, phone, message, created_at
		FROM contacts
		WHERE id = $1`
	var contact types.Contact
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&contact.ID,
		&contact.Name,
		&contact.Email,
		&contact.Phone,
		&contact.Message,
		&contact.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Contact{}, ErrNotFound
		}
		return types.Contact{}, fmt.Errorf("select contact: %w", err)
	}
	return contact, nil
}

func (r *ContactRepository) List(ctx context.Context) ([]types.Contact, error) {
	const query = `
		SELECT id, name, email, phone, message, created_at
		FROM contacts
		ORDER BY created_at DESC, id`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := make([]types.Contact, 0)
	for rows.Next() {
		var contact types.Contact
		if err := rows.Scan(
			&contact.ID,
			&contact.Name,
			&contact.Email,
			&contact.Phone,
			&contact.Message,
			&contact.CreatedAt,
		); err != nil {
			return nil, err
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return contacts, nil
}
