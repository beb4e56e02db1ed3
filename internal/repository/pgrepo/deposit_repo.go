package pgrepo

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const depositColumns = `id, created_at, updated_at, user_id, plan_id, asset, network, claimed_amount,
	approved_amount, proof_ref, tx_hash, payment_link, status, admin_id, remarks, approved_at`

type DepositRepository struct {
	conn uow.DBTX
}

func NewDepositRepository(conn uow.DBTX) *DepositRepository {
	return &DepositRepository{conn: conn}
}

func (r *DepositRepository) Create(ctx context.Context, args repoargs.DepositCreate) (*domain.Deposit, error) {
	d, err := scanDeposit(r.conn.QueryRow(ctx,
		`INSERT INTO deposits (user_id, plan_id, asset, network, claimed_amount, proof_ref, tx_hash,
		                       payment_link, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING `+depositColumns,
		args.UserID, args.PlanID, args.Asset, args.Network, args.ClaimedAmount, args.ProofRef, args.TxHash,
		args.PaymentLink, domain.DepositStatusPending,
	))
	if err != nil {
		return nil, convertErr(err, "creating deposit for user %d", args.UserID)
	}
	return d, nil
}

// GetPendingForUpdate блокирует и возвращает депозит в статусе PENDING. Депозит в любом другом статусе
// считается ненайденным.
func (r *DepositRepository) GetPendingForUpdate(ctx context.Context, id int64) (*domain.Deposit, error) {
	d, err := scanDeposit(r.conn.QueryRow(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE id = $1 AND status = $2 FOR UPDATE`,
		id, domain.DepositStatusPending,
	))
	if err != nil {
		return nil, convertErr(err, "getting pending deposit %d", id)
	}
	return d, nil
}

func (r *DepositRepository) CountApprovedByUserID(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.conn.QueryRow(ctx,
		`SELECT COUNT(*) FROM deposits WHERE user_id = $1 AND status = $2`,
		userID, domain.DepositStatusApproved,
	).Scan(&count)
	if err != nil {
		return 0, convertErr(err, "counting approved deposits for user %d", userID)
	}
	return count, nil
}

func (r *DepositRepository) UpdateStatus(
	ctx context.Context,
	args repoargs.DepositStatusUpdate,
) (*domain.Deposit, error) {
	d, err := scanDeposit(r.conn.QueryRow(ctx,
		`UPDATE deposits
		 SET status = $2, approved_amount = $3, admin_id = $4, remarks = $5, approved_at = $6, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+depositColumns,
		args.ID, args.Status, args.ApprovedAmount, args.AdminID, args.Remarks, args.ApprovedAt,
	))
	if err != nil {
		return nil, convertErr(err, "updating deposit %d", args.ID)
	}
	return d, nil
}

func (r *DepositRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Deposit, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, convertErr(err, "getting deposits for user %d", userID)
	}
	return collectDeposits(rows, "getting deposits for user %d", userID)
}

func (r *DepositRepository) GetByStatus(
	ctx context.Context,
	status domain.DepositStatus,
	page repoargs.Page,
) ([]domain.Deposit, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+depositColumns+` FROM deposits WHERE status = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		status, page.Limit, page.Offset,
	)
	if err != nil {
		return nil, convertErr(err, "getting deposits with status %s", status)
	}
	return collectDeposits(rows, "getting deposits with status %s", status)
}

func collectDeposits(rows pgx.Rows, format string, args ...any) ([]domain.Deposit, error) {
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		d, err := scanDeposit(rows)
		if err != nil {
			return nil, convertErr(err, format, args...)
		}
		deposits = append(deposits, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, format, args...)
	}
	return deposits, nil
}

func scanDeposit(row pgx.Row) (*domain.Deposit, error) {
	var d domain.Deposit
	err := row.Scan(
		&d.ID, &d.CreatedAt, &d.UpdatedAt, &d.UserID, &d.PlanID, &d.Asset, &d.Network, &d.ClaimedAmount,
		&d.ApprovedAmount, &d.ProofRef, &d.TxHash, &d.PaymentLink, &d.Status, &d.AdminID, &d.Remarks,
		&d.ApprovedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan deposit: %w", err)
	}
	return &d, nil
}
