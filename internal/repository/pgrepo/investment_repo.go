package pgrepo

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const investmentColumns = `id, created_at, updated_at, user_id, wallet_id, deposit_id, plan_id, principal,
	profit_percent, interval_hours, duration_days, start_at, next_due_at, total_credited, status`

type InvestmentRepository struct {
	conn uow.DBTX
}

func NewInvestmentRepository(conn uow.DBTX) *InvestmentRepository {
	return &InvestmentRepository{conn: conn}
}

func (r *InvestmentRepository) Create(
	ctx context.Context,
	args repoargs.InvestmentCreate,
) (*domain.Investment, error) {
	row := r.conn.QueryRow(ctx,
		`INSERT INTO investments (user_id, wallet_id, deposit_id, plan_id, principal, profit_percent,
		                          interval_hours, duration_days, start_at, next_due_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING `+investmentColumns,
		args.UserID, args.WalletID, args.DepositID, args.PlanID, args.Principal, args.ProfitPercent,
		args.IntervalHours, args.DurationDays, args.StartAt, args.NextDueAt, domain.InvestmentStatusActive,
	)
	inv, err := scanInvestment(row)
	if err != nil {
		return nil, convertErr(err, "creating investment for user %d", args.UserID)
	}
	return inv, nil
}

func (r *InvestmentRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Investment, error) {
	inv, err := scanInvestment(r.conn.QueryRow(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, convertErr(err, "getting investment %d", id)
	}
	return inv, nil
}

// ListActiveForUpdate возвращает активные инвестиции пользователя от старых к новым и блокирует их.
func (r *InvestmentRepository) ListActiveForUpdate(ctx context.Context, userID int64) ([]domain.Investment, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+investmentColumns+` FROM investments
		 WHERE user_id = $1 AND status = $2
		 ORDER BY created_at, id
		 FOR UPDATE`,
		userID, domain.InvestmentStatusActive,
	)
	if err != nil {
		return nil, convertErr(err, "listing active investments for user %d", userID)
	}
	return collectInvestments(rows, "listing active investments for user %d", userID)
}

// ListDue возвращает активные инвестиции, у которых наступил срок начисления или закончился план.
func (r *InvestmentRepository) ListDue(
	ctx context.Context,
	args repoargs.DueInvestments,
) ([]domain.Investment, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+investmentColumns+` FROM investments
		 WHERE status = $1
		   AND id > $2
		   AND (next_due_at <= $3 OR start_at + duration_days * INTERVAL '1 day' <= $3)
		 ORDER BY id
		 LIMIT $4`,
		domain.InvestmentStatusActive, args.AfterID, args.Now, args.Limit,
	)
	if err != nil {
		return nil, convertErr(err, "listing due investments")
	}
	return collectInvestments(rows, "listing due investments")
}

func (r *InvestmentRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Investment, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+investmentColumns+` FROM investments WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, convertErr(err, "getting investments for user %d", userID)
	}
	return collectInvestments(rows, "getting investments for user %d", userID)
}

func (r *InvestmentRepository) Save(ctx context.Context, inv *domain.Investment) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE investments
		 SET principal = $2, next_due_at = $3, total_credited = $4, status = $5, updated_at = NOW()
		 WHERE id = $1`,
		inv.ID, inv.Principal, inv.NextDueAt, inv.TotalCredited, inv.Status,
	)
	if err != nil {
		return convertErr(err, "saving investment %d", inv.ID)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "saving investment %d", inv.ID)
	}
	return nil
}

func collectInvestments(rows pgx.Rows, format string, args ...any) ([]domain.Investment, error) {
	defer rows.Close()

	var investments []domain.Investment
	for rows.Next() {
		inv, err := scanInvestment(rows)
		if err != nil {
			return nil, convertErr(err, format, args...)
		}
		investments = append(investments, *inv)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, format, args...)
	}
	return investments, nil
}

func scanInvestment(row pgx.Row) (*domain.Investment, error) {
	var inv domain.Investment
	err := row.Scan(
		&inv.ID, &inv.CreatedAt, &inv.UpdatedAt, &inv.UserID, &inv.WalletID, &inv.DepositID, &inv.PlanID,
		&inv.Principal, &inv.ProfitPercent, &inv.IntervalHours, &inv.DurationDays, &inv.StartAt,
		&inv.NextDueAt, &inv.TotalCredited, &inv.Status,
	)
	if err != nil {
		return nil, fmt.Errorf("scan investment: %w", err)
	}
	return &inv, nil
}
