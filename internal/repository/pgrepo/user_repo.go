package pgrepo

import (
	"context"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/jackc/pgx/v5"
)

// UserRepository работает с проекцией пользователя: реферер, баллы лояльности и активность.
// Регистрация и профиль пользователя живут в другом сервисе.
type UserRepository struct {
	conn uow.DBTX
}

func NewUserRepository(conn uow.DBTX) *UserRepository {
	return &UserRepository{conn: conn}
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var u domain.User
	err := r.conn.QueryRow(ctx,
		`SELECT id, created_at, updated_at, email, name, referred_by, points, tier, is_active,
		        require_withdraw_verification
		 FROM users WHERE id = $1`,
		id,
	).Scan(
		&u.ID, &u.CreatedAt, &u.UpdatedAt, &u.Email, &u.Name, &u.ReferredBy, &u.Points, &u.Tier, &u.IsActive,
		&u.RequireWithdrawVerification,
	)
	if err != nil {
		return nil, convertErr(err, "getting user %d", id)
	}
	return &u, nil
}

func (r *UserRepository) UpdateLoyalty(ctx context.Context, args repoargs.LoyaltyUpdate) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE users SET points = $2, tier = $3, updated_at = NOW() WHERE id = $1`,
		args.UserID, args.Points, args.Tier,
	)
	if err != nil {
		return convertErr(err, "updating loyalty for user %d", args.UserID)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "updating loyalty for user %d", args.UserID)
	}
	return nil
}

func (r *UserRepository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.conn.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return convertErr(err, "updating user %d activity", id)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "updating user %d activity", id)
	}
	return nil
}
