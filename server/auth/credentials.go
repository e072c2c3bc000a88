package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/oddsmith/arbiter/errors"
)

// User roles. Admins get the full surface including job control verbs
// and watchlist purge; viewers get the read surface only.
const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

// User is a registered API user. The access token itself is never
// stored, only its hash.
type User struct {
	ID        string
	Username  string
	Role      string
	CreatedAt time.Time
}

// UserStore persists API users and their token hashes in sqlite.
type UserStore struct {
	db     *sql.DB
	logger *zap.SugaredLogger
}

// NewUserStore creates a user store over an already-migrated database.
func NewUserStore(db *sql.DB, logger *zap.SugaredLogger) *UserStore {
	return &UserStore{db: db, logger: logger}
}

// Create registers a user and returns the generated access token. The
// token is shown exactly once; only its SHA-256 hash is persisted.
func (s *UserStore) Create(username, role string) (*User, string, error) {
	if username == "" {
		return nil, "", errors.Mark(errors.New("username is required"), errors.ErrInvalidRequest)
	}
	if role != RoleAdmin && role != RoleViewer {
		return nil, "", errors.Mark(errors.Newf("unknown role %q", role), errors.ErrInvalidRequest)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", errors.Wrap(err, "failed to generate access token")
	}
	token := hex.EncodeToString(raw)

	user := &User{
		ID:        "usr_" + uuid.New().String(),
		Username:  username,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO users (id, username, token_hash, role, created_at) VALUES (?, ?, ?, ?, ?)`,
		user.ID, user.Username, hashToken(token), user.Role, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, "", errors.Mark(errors.Newf("user %q already exists", username), errors.ErrConflict)
		}
		return nil, "", errors.Wrapf(err, "failed to create user %q", username)
	}
	return user, token, nil
}

// Authenticate resolves an access token to its user. Unknown tokens
// return ErrUnauthorized.
func (s *UserStore) Authenticate(token string) (*User, error) {
	rows, err := s.db.Query(`SELECT id, username, token_hash, role, created_at FROM users`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query users")
	}
	defer rows.Close()

	want := hashToken(token)
	for rows.Next() {
		var u User
		var hash string
		if err := rows.Scan(&u.ID, &u.Username, &hash, &u.Role, &u.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan user row")
		}
		if subtle.ConstantTimeCompare([]byte(hash), []byte(want)) == 1 {
			return &u, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate user rows")
	}
	return nil, errors.Mark(errors.New("unknown access token"), errors.ErrUnauthorized)
}

// Count reports how many users are registered. Zero users means the
// instance is unclaimed and the API runs open until the first user is
// created from the CLI.
func (s *UserStore) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "failed to count users")
	}
	return count, nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
