package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"

	"github.com/askelund/dagsplan/internal/model"
)

const maxCodeAttempts = 5

type LoginCodeStore struct {
	db *sql.DB
}

func NewLoginCodeStore(db *sql.DB) *LoginCodeStore {
	return &LoginCodeStore{db: db}
}

func scanLoginCode(scanner interface{ Scan(...any) error }) (*model.LoginCode, error) {
	var lc model.LoginCode
	var usedAt sql.NullTime

	err := scanner.Scan(&lc.ID, &lc.Token, &lc.Email, &lc.ExpiresAt, &usedAt, &lc.Attempts, &lc.CreatedAt)
	if err != nil {
		return nil, err
	}

	if usedAt.Valid {
		lc.UsedAt = &usedAt.Time
	}
	return &lc, nil
}

const loginCodeCols = `id, token, email, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000-999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create generates a new login code with a 15-minute expiry. Any previous
// pending codes for the same email are invalidated first.
func (s *LoginCodeStore) Create(email string) (*model.LoginCode, error) {
	_, err := s.db.Exec(
		`UPDATE login_codes SET used_at = datetime('now') WHERE email = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}

	result, err := s.db.Exec(
		`INSERT INTO login_codes (token, email, expires_at) VALUES (?, ?, datetime('now', '+15 minutes'))`,
		code, email,
	)
	if err != nil {
		return nil, fmt.Errorf("insert login code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row := s.db.QueryRow(`SELECT `+loginCodeCols+` FROM login_codes WHERE id = ?`, id)
	return scanLoginCode(row)
}

// Consume validates a code for an email and marks it used. It returns the
// code record on success and nil when the code is wrong, expired, already
// used, or has seen too many attempts.
func (s *LoginCodeStore) Consume(email, code string) (*model.LoginCode, error) {
	row := s.db.QueryRow(
		`SELECT `+loginCodeCols+` FROM login_codes
		 WHERE email = ? AND used_at IS NULL AND expires_at > datetime('now')
		 ORDER BY created_at DESC LIMIT 1`,
		email,
	)
	lc, err := scanLoginCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get login code: %w", err)
	}

	if lc.Token != code {
		if _, err := s.db.Exec(`UPDATE login_codes SET attempts = attempts + 1 WHERE id = ?`, lc.ID); err != nil {
			return nil, fmt.Errorf("bump attempts: %w", err)
		}
		if lc.Attempts+1 >= maxCodeAttempts {
			if _, err := s.db.Exec(`UPDATE login_codes SET used_at = datetime('now') WHERE id = ?`, lc.ID); err != nil {
				return nil, fmt.Errorf("burn login code: %w", err)
			}
		}
		return nil, nil
	}

	if _, err := s.db.Exec(`UPDATE login_codes SET used_at = datetime('now') WHERE id = ?`, lc.ID); err != nil {
		return nil, fmt.Errorf("mark code used: %w", err)
	}
	return lc, nil
}
