package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dkeye/Relay/internal/domain"
)

const callColumns = `code, initiator_code, recipient_code, call_type, status,
	offer, answer, created_at, updated_at, ended_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCallSession(row rowScanner) (domain.CallSession, error) {
	var (
		c                          domain.CallSession
		code, initiator, recipient string
		kind, status               string
		offer, answer              sql.NullString
		created, updated           int64
		ended                      sql.NullInt64
	)
	if err := row.Scan(&code, &initiator, &recipient, &kind, &status,
		&offer, &answer, &created, &updated, &ended); err != nil {
		return c, err
	}
	c.Code = domain.SessionCode(code)
	c.Initiator = domain.IdentityCode(initiator)
	c.Recipient = domain.IdentityCode(recipient)
	c.Kind = domain.MediaKind(kind)
	c.Status = domain.CallStatus(status)
	c.Offer = offer.String
	c.Answer = answer.String
	c.CreatedAt = fromMillis(created)
	c.UpdatedAt = fromMillis(updated)
	if ended.Valid {
		t := fromMillis(ended.Int64)
		c.EndedAt = &t
	}
	return c, nil
}

func (s *Store) CreateCallSession(ctx context.Context, c domain.CallSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO call_sessions (`+callColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		string(c.Code), string(c.Initiator), string(c.Recipient), string(c.Kind), string(c.Status),
		nullable(c.Offer), nullable(c.Answer), toMillis(c.CreatedAt), toMillis(c.CreatedAt))
	if err != nil {
		return fmt.Errorf("create call session: %w", err)
	}
	return nil
}

func (s *Store) GetCallSession(ctx context.Context, code domain.SessionCode) (domain.CallSession, error) {
	c, err := scanCallSession(s.db.QueryRowContext(ctx,
		`SELECT `+callColumns+` FROM call_sessions WHERE code = ?`, string(code)))
	if errors.Is(err, sql.ErrNoRows) {
		return c, domain.ErrSessionNotFound
	}
	if err != nil {
		return c, fmt.Errorf("get call session: %w", err)
	}
	return c, nil
}

// AdvanceCallSession applies t only while the stored status is one of t.From.
// The returned bool reports whether this call moved the row; the session is
// the stored state after the attempt either way.
func (s *Store) AdvanceCallSession(ctx context.Context, t domain.CallTransition) (domain.CallSession, bool, error) {
	if len(t.From) == 0 {
		c, err := s.GetCallSession(ctx, t.Code)
		return c, false, err
	}
	var offer, answer sql.NullString
	if t.Offer != nil {
		offer = sql.NullString{String: *t.Offer, Valid: true}
	}
	if t.Answer != nil {
		answer = sql.NullString{String: *t.Answer, Valid: true}
	}
	at := toMillis(t.At)
	var ended sql.NullInt64
	if t.To == domain.CallEnded {
		ended = sql.NullInt64{Int64: at, Valid: true}
	}

	args := []any{string(t.To), offer, answer, at, ended, string(t.Code)}
	for _, st := range t.From {
		args = append(args, string(st))
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE call_sessions SET
			status = ?,
			offer = COALESCE(?, offer),
			answer = COALESCE(?, answer),
			updated_at = ?,
			ended_at = COALESCE(?, ended_at)
		 WHERE code = ? AND status IN (`+placeholders(len(t.From))+`)`, args...)
	if err != nil {
		return domain.CallSession{}, false, fmt.Errorf("advance call session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.CallSession{}, false, fmt.Errorf("advance call session: %w", err)
	}
	c, err := s.GetCallSession(ctx, t.Code)
	return c, n == 1 && err == nil, err
}

// EndOpenCallSessions ends every non terminal session. A fresh process holds
// no live connections, so sessions left open by a previous run are orphans.
func (s *Store) EndOpenCallSessions(ctx context.Context, now time.Time) (int64, error) {
	at := toMillis(now)
	res, err := s.db.ExecContext(ctx,
		`UPDATE call_sessions SET status = ?, updated_at = ?, ended_at = ?
		 WHERE status IN (?, ?)`,
		string(domain.CallEnded), at, at, string(domain.CallInitiated), string(domain.CallActive))
	if err != nil {
		return 0, fmt.Errorf("end open call sessions: %w", err)
	}
	return res.RowsAffected()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
