// Package sqlite is the relay's default external store: identities, friendships,
// groups, chat messages, notifications and call sessions in one SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkeye/Relay/internal/domain"
	"github.com/dkeye/Relay/internal/storage/sqlite/migrations"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

func toMillis(t time.Time) int64 { return t.UTC().UnixMilli() }

func fromMillis(v int64) time.Time { return time.UnixMilli(v).UTC() }

type Store struct {
	db *sql.DB
}

// Open opens the database at path and applies bundled migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer; SQLite serializes writes anyway and this keeps busy errors away
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	s := &Store{db: db}
	n, err := s.Migrate(ctx)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	log.Info().Str("module", "storage.sqlite").Str("path", path).Int("applied", n).Msg("store opened")
	return s, nil
}

func (s *Store) Migrate(ctx context.Context) (int, error) {
	return applyMigrations(ctx, s.db, migrations.FS)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *Store) exists(ctx context.Context, query string, args ...any) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// orderedPair stores friendships once per unordered pair.
func orderedPair(a, b domain.IdentityCode) (domain.IdentityCode, domain.IdentityCode) {
	if a > b {
		return b, a
	}
	return a, b
}

func (s *Store) PutUser(ctx context.Context, code domain.IdentityCode, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (code, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(code) DO UPDATE SET name = excluded.name`,
		string(code), name, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

func (s *Store) UserName(ctx context.Context, code domain.IdentityCode) (string, error) {
	var name string
	err := s.db.QueryRowContext(ctx, `SELECT name FROM users WHERE code = ?`, string(code)).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrTargetNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get user: %w", err)
	}
	return name, nil
}

func (s *Store) IdentityExists(ctx context.Context, code domain.IdentityCode) (bool, error) {
	ok, err := s.exists(ctx, `SELECT 1 FROM users WHERE code = ?`, string(code))
	if err != nil {
		return false, fmt.Errorf("identity exists: %w", err)
	}
	return ok, nil
}

func (s *Store) PutFriendship(ctx context.Context, a, b domain.IdentityCode) error {
	lo, hi := orderedPair(a, b)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO friendships (user_a, user_b, status, created_at) VALUES (?, ?, 'ACCEPTED', ?)
		 ON CONFLICT(user_a, user_b) DO UPDATE SET status = 'ACCEPTED'`,
		string(lo), string(hi), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("put friendship: %w", err)
	}
	return nil
}

func (s *Store) AreFriends(ctx context.Context, a, b domain.IdentityCode) (bool, error) {
	lo, hi := orderedPair(a, b)
	ok, err := s.exists(ctx,
		`SELECT 1 FROM friendships WHERE user_a = ? AND user_b = ? AND status = 'ACCEPTED'`,
		string(lo), string(hi))
	if err != nil {
		return false, fmt.Errorf("are friends: %w", err)
	}
	return ok, nil
}

// PutGroup creates a group and makes owner its first member.
func (s *Store) PutGroup(ctx context.Context, code domain.GroupCode, name string, owner domain.IdentityCode) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("put group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	now := toMillis(time.Now())
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO chat_groups (code, name, owner_code, created_at) VALUES (?, ?, ?, ?)`,
		string(code), name, string(owner), now); err != nil {
		return fmt.Errorf("put group: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_code, user_code, joined_at) VALUES (?, ?, ?)`,
		string(code), string(owner), now); err != nil {
		return fmt.Errorf("put group owner: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("put group: %w", err)
	}
	return nil
}

func (s *Store) PutGroupMember(ctx context.Context, group domain.GroupCode, user domain.IdentityCode) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO group_members (group_code, user_code, joined_at) VALUES (?, ?, ?)`,
		string(group), string(user), toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("put group member: %w", err)
	}
	return nil
}

func (s *Store) GroupExists(ctx context.Context, code domain.GroupCode) (bool, error) {
	ok, err := s.exists(ctx, `SELECT 1 FROM chat_groups WHERE code = ?`, string(code))
	if err != nil {
		return false, fmt.Errorf("group exists: %w", err)
	}
	return ok, nil
}

func (s *Store) IsGroupMember(ctx context.Context, group domain.GroupCode, user domain.IdentityCode) (bool, error) {
	ok, err := s.exists(ctx,
		`SELECT 1 FROM group_members WHERE group_code = ? AND user_code = ?`,
		string(group), string(user))
	if err != nil {
		return false, fmt.Errorf("is group member: %w", err)
	}
	return ok, nil
}

func (s *Store) ListGroupMembers(ctx context.Context, group domain.GroupCode) ([]domain.IdentityCode, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_code FROM group_members WHERE group_code = ? ORDER BY joined_at, user_code`,
		string(group))
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()
	var out []domain.IdentityCode
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("scan group member: %w", err)
		}
		out = append(out, domain.IdentityCode(code))
	}
	return out, rows.Err()
}

func (s *Store) CreateNotification(ctx context.Context, n domain.Notification) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_code, message, is_read, created_at) VALUES (?, ?, ?, 0, ?)`,
		n.ID, string(n.Recipient), n.Message, toMillis(n.CreatedAt))
	if err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func (s *Store) ListNotifications(ctx context.Context, user domain.IdentityCode) ([]domain.Notification, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_code, message, is_read, created_at FROM notifications
		 WHERE user_code = ? ORDER BY created_at, id`, string(user))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()
	var out []domain.Notification
	for rows.Next() {
		var (
			n         domain.Notification
			recipient string
			created   int64
		)
		if err := rows.Scan(&n.ID, &recipient, &n.Message, &n.Read, &created); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Recipient = domain.IdentityCode(recipient)
		n.CreatedAt = fromMillis(created)
		out = append(out, n)
	}
	return out, rows.Err()
}
