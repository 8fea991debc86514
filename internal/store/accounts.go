package store

import (
	"fmt"

	"github.com/google/uuid"
)

// Account represents a vault owner. The server runs single-tenant but
// every row is account-scoped so the schema supports more than one.
type Account struct {
	ID        string
	Email     string
	CreatedAt string
}

// EnsureAccount returns the account with the given email, creating it
// if it does not exist yet.
func (s *Store) EnsureAccount(email string) (*Account, error) {
	a, err := s.GetAccountByEmail(email)
	if err == nil {
		return a, nil
	}

	a = &Account{
		ID:        uuid.NewString(),
		Email:     email,
		CreatedAt: now(),
	}
	_, err = s.writer.Exec(
		"INSERT INTO accounts (id, email, created_at) VALUES (?, ?, ?)",
		a.ID, a.Email, a.CreatedAt,
	)
	if err != nil {
		// Lost a race with a concurrent create: re-read the winner.
		if isUniqueViolation(err) {
			return s.GetAccountByEmail(email)
		}
		return nil, fmt.Errorf("store: insert account: %w", err)
	}
	return a, nil
}

// GetAccount retrieves an account by its ID.
func (s *Store) GetAccount(id string) (*Account, error) {
	a := &Account{}
	err := s.reader.QueryRow(
		"SELECT id, email, created_at FROM accounts WHERE id = ?", id,
	).Scan(&a.ID, &a.Email, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get account %s: %w", id, err)
	}
	return a, nil
}

// GetAccountByEmail retrieves an account by its email address.
func (s *Store) GetAccountByEmail(email string) (*Account, error) {
	a := &Account{}
	err := s.reader.QueryRow(
		"SELECT id, email, created_at FROM accounts WHERE email = ?", email,
	).Scan(&a.ID, &a.Email, &a.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store: get account by email: %w", err)
	}
	return a, nil
}
