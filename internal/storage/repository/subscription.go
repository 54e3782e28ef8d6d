package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/remindmybill/remindmybill/internal/models"
)

const subscriptionColumns = `id, user_uid, username, name, cost, currency, frequency,
	category, anchor_date, status, locked, is_trial, shared_with, created_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var item models.Subscription
	if err := row.Scan(&item.ID, &item.UserUID, &item.Username, &item.Name, &item.Cost,
		&item.Currency, &item.Frequency, &item.Category, &item.AnchorDate, &item.Status,
		&item.Locked, &item.IsTrial, &item.SharedWith, &item.CreatedAt); err != nil {
		return nil, err
	}
	return &item, nil
}

// CreateEntry вставляет новую запись подписки и возвращает её ID.
func (s *Storage) CreateEntry(ctx context.Context, sub models.Subscription) (int, error) {
	const op = "storage.CreateEntry"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_uid, username, name, cost, currency,
			      frequency, category, anchor_date, status, locked, is_trial, shared_with)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			  RETURNING id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		sub.UserUID, sub.Username, sub.Name, sub.Cost, sub.Currency, sub.Frequency,
		sub.Category, sub.AnchorDate, sub.Status, sub.Locked, sub.IsTrial,
		sub.SharedWith).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ReadEntry возвращает данные подписки по её ID.
func (s *Storage) ReadEntry(ctx context.Context, id int) (*models.Subscription, error) {
	const op = "storage.ReadEntry"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE id = $1`
	item, err := scanSubscription(s.DB.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return item, nil
}

// UpdateEntry обновляет данные подписки по её ID и возвращает количество изменённых строк.
func (s *Storage) UpdateEntry(ctx context.Context, sub models.Subscription, id int) (int, error) {
	const op = "storage.UpdateEntry"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions
			  SET name = $1, cost = $2, currency = $3, frequency = $4,
			      category = $5, anchor_date = $6, is_trial = $7, shared_with = $8
			  WHERE id = $9`
	result, err := s.DB.ExecContext(ctx, query,
		sub.Name, sub.Cost, sub.Currency, sub.Frequency, sub.Category,
		sub.AnchorDate, sub.IsTrial, sub.SharedWith, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// RemoveEntry удаляет подписку по ID и возвращает количество удалённых строк.
func (s *Storage) RemoveEntry(ctx context.Context, id int) (int, error) {
	const op = "storage.RemoveEntry"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `DELETE FROM subscriptions WHERE id = $1`
	result, err := s.DB.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// SetEntryStatus выставляет статус подписки и возвращает количество изменённых строк.
func (s *Storage) SetEntryStatus(ctx context.Context, id int, status string) (int, error) {
	const op = "storage.SetEntryStatus"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions SET status = $1 WHERE id = $2`
	result, err := s.DB.ExecContext(ctx, query, status, id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(rowsAffected), nil
}

// UpdateEntryLock выставляет флаг блокировки у подписки.
func (s *Storage) UpdateEntryLock(ctx context.Context, id int, locked bool) error {
	const op = "storage.UpdateEntryLock"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions SET locked = $1 WHERE id = $2`
	if _, err := s.DB.ExecContext(ctx, query, locked, id); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListEntries возвращает список всех подписок пользователя с пагинацией.
func (s *Storage) ListEntries(ctx context.Context, username string, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE username = $1
			  ORDER BY id
			  LIMIT $2 OFFSET $3`
	rows, err := s.DB.QueryContext(ctx, query, username, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result, err := collectSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListAllEntries возвращает список всех подписок с пагинацией.
func (s *Storage) ListAllEntries(ctx context.Context, limit, offset int) ([]*models.Subscription, error) {
	const op = "storage.ListAllEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  ORDER BY id
			  LIMIT $1 OFFSET $2`
	rows, err := s.DB.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result, err := collectSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListActiveEntries возвращает активные подписки пользователя,
// упорядоченные по времени создания. Порядок важен для сверки лимита:
// при равном created_at старшей считается запись с меньшим ID.
func (s *Storage) ListActiveEntries(ctx context.Context, userUID string) ([]*models.Subscription, error) {
	const op = "storage.ListActiveEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE user_uid = $1 AND status = $2
			  ORDER BY created_at, id`
	rows, err := s.DB.QueryContext(ctx, query, userUID, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result, err := collectSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListAllActiveEntries возвращает активные подписки всех пользователей,
// используется планировщиком напоминаний.
func (s *Storage) ListAllActiveEntries(ctx context.Context) ([]*models.Subscription, error) {
	const op = "storage.ListAllActiveEntries"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + subscriptionColumns + `
			  FROM subscriptions
			  WHERE status = $1
			  ORDER BY user_uid, id`
	rows, err := s.DB.QueryContext(ctx, query, models.StatusActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	result, err := collectSubscriptions(rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

func collectSubscriptions(rows *sql.Rows) ([]*models.Subscription, error) {
	var result []*models.Subscription
	for rows.Next() {
		item, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
