package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/remindmybill/remindmybill/internal/models"
)

const userColumns = `uid, username, email, password_hash, role, tier, tier_expiry,
	currency, created_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	u := &models.User{}
	var tierExpiry sql.NullTime
	if err := row.Scan(&u.UID, &u.Username, &u.Email, &u.PasswordHash, &u.Role,
		&u.Tier, &tierExpiry, &u.Currency, &u.CreatedAt); err != nil {
		return nil, err
	}
	if tierExpiry.Valid {
		u.TierExpiry = &tierExpiry.Time
	}
	return u, nil
}

// RegisterUser сохраняет нового пользователя в базу данных и возвращает его UID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var newUID string
	query := `INSERT INTO users (username, email, password_hash, role, tier, currency)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING uid;`
	if err := s.DB.QueryRowContext(ctx, query,
		user.Username, user.Email, user.PasswordHash, user.Role, user.Tier,
		user.Currency).Scan(&newUID); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newUID, nil
}

// GetUserByUsername возвращает пользователя по его username.
func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.GetUserByUsername"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, username))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserByUID возвращает пользователя по его UID.
func (s *Storage) GetUserByUID(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUserByUID"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}

// GetUserTier возвращает тариф пользователя с его лимитом подписок.
func (s *Storage) GetUserTier(ctx context.Context, userUID string) (models.Tier, error) {
	const op = "storage.GetUserTier"
	select {
	case <-ctx.Done():
		return models.Tier{}, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT tier FROM users WHERE uid = $1`
	var name string
	if err := s.DB.QueryRowContext(ctx, query, userUID).Scan(&name); err != nil {
		return models.Tier{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.TierByName(name), nil
}

// SetUserTier выставляет тариф и срок его действия.
// Для бесплатного тарифа expiry передаётся как nil.
func (s *Storage) SetUserTier(ctx context.Context, userUID, tier string, expiry *time.Time) error {
	const op = "storage.SetUserTier"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET tier = $1, tier_expiry = $2 WHERE uid = $3`
	if _, err := s.DB.ExecContext(ctx, query, tier, expiry, userUID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListExpiredProUsers возвращает пользователей, чей pro-тариф истёк к moment.
func (s *Storage) ListExpiredProUsers(ctx context.Context, moment time.Time) ([]*models.User, error) {
	const op = "storage.ListExpiredProUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + `
			  FROM users
			  WHERE tier = $1
			    AND tier_expiry IS NOT NULL
			    AND tier_expiry <= $2`
	rows, err := s.DB.QueryContext(ctx, query, models.TierPro, moment)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
