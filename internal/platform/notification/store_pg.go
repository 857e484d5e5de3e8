package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/clinic/internal/platform/db"
)

type storePG struct{ pool *pgxpool.Pool }

func NewStorePG(pool *pgxpool.Pool) Store { return &storePG{pool: pool} }

const notificationCols = `id, user_id, title, message, type, is_read, data, link_to, created_at`

func scanNotification(row pgx.Row) (*Notification, error) {
	var (
		n      Notification
		data   []byte
		linkTo *string
	)
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &data, &linkTo, &n.CreatedAt); err != nil {
		return nil, err
	}
	if linkTo != nil {
		n.LinkTo = *linkTo
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &n.Data); err != nil {
			return nil, fmt.Errorf("decode notification data: %w", err)
		}
	}
	return &n, nil
}

func (s *storePG) Create(ctx context.Context, n *Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Type == "" {
		n.Type = TypeGeneral
	}

	var data []byte
	if n.Data != nil {
		var err error
		if data, err = json.Marshal(n.Data); err != nil {
			return fmt.Errorf("encode notification data: %w", err)
		}
	}
	var linkTo *string
	if n.LinkTo != "" {
		linkTo = &n.LinkTo
	}

	_, err := db.Conn(ctx, s.pool).Exec(ctx, `
		INSERT INTO notification (id, user_id, title, message, type, is_read, data, link_to, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.UserID, n.Title, n.Message, n.Type, n.IsRead, data, linkTo, n.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *storePG) List(ctx context.Context, f ListFilter) ([]*Notification, int, error) {
	q := db.Conn(ctx, s.pool)

	where := `WHERE user_id = $1`
	if f.UnreadOnly {
		where += ` AND NOT is_read`
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM notification `+where, f.UserID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT `+notificationCols+` FROM notification `+where+`
		ORDER BY created_at DESC LIMIT $2 OFFSET $3`, f.UserID, f.Limit, f.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	items := make([]*Notification, 0, f.Limit)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, n)
	}
	return items, total, rows.Err()
}

func (s *storePG) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	var n int
	err := db.Conn(ctx, s.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM notification WHERE user_id = $1 AND NOT is_read`, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread notifications: %w", err)
	}
	return n, nil
}

func (s *storePG) MarkRead(ctx context.Context, id, userID uuid.UUID) (*Notification, error) {
	n, err := scanNotification(db.Conn(ctx, s.pool).QueryRow(ctx, `
		UPDATE notification SET is_read = TRUE
		WHERE id = $1 AND user_id = $2
		RETURNING `+notificationCols, id, userID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mark notification read: %w", err)
	}
	return n, nil
}

func (s *storePG) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	tag, err := db.Conn(ctx, s.pool).Exec(ctx,
		`UPDATE notification SET is_read = TRUE WHERE user_id = $1 AND NOT is_read`, userID)
	if err != nil {
		return 0, fmt.Errorf("mark all notifications read: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *storePG) Delete(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := db.Conn(ctx, s.pool).Exec(ctx,
		`DELETE FROM notification WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
