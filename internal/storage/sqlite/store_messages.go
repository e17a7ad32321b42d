package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dkeye/Relay/internal/domain"
)

const messageColumns = `id, sender_code, recipient_user_code, recipient_group_code,
	message_type, content, file_name, file_data, created_at`

func nullable(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func (s *Store) SaveMessage(ctx context.Context, m domain.ChatMessage) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Sender), nullable(string(m.RecipientUser)), nullable(string(m.RecipientGroup)),
		string(m.Kind), m.Content, m.FileName, m.FileData, toMillis(m.CreatedAt))
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// ListDirectMessages returns the latest limit messages between a and b, oldest first.
func (s *Store) ListDirectMessages(ctx context.Context, a, b domain.IdentityCode, limit int) ([]domain.ChatMessage, error) {
	return s.listMessages(ctx,
		`SELECT seq, `+messageColumns+` FROM messages
		 WHERE (sender_code = ?1 AND recipient_user_code = ?2) OR (sender_code = ?2 AND recipient_user_code = ?1)
		 ORDER BY seq DESC LIMIT ?3`,
		string(a), string(b), limit)
}

func (s *Store) ListGroupMessages(ctx context.Context, group domain.GroupCode, limit int) ([]domain.ChatMessage, error) {
	return s.listMessages(ctx,
		`SELECT seq, `+messageColumns+` FROM messages
		 WHERE recipient_group_code = ?1 ORDER BY seq DESC LIMIT ?2`,
		string(group), limit)
}

func (s *Store) listMessages(ctx context.Context, query string, args ...any) ([]domain.ChatMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	var out []domain.ChatMessage
	for rows.Next() {
		var (
			seq             int64
			m               domain.ChatMessage
			sender, kind    string
			toUser, toGroup sql.NullString
			created         int64
		)
		if err := rows.Scan(&seq, &m.ID, &sender, &toUser, &toGroup,
			&kind, &m.Content, &m.FileName, &m.FileData, &created); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Sender = domain.IdentityCode(sender)
		m.RecipientUser = domain.IdentityCode(toUser.String)
		m.RecipientGroup = domain.GroupCode(toGroup.String)
		m.Kind = domain.MessageKind(kind)
		m.CreatedAt = fromMillis(created)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
