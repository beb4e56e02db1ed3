package pgrepo

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, created_at, updated_at, user_id, asset, network, amount, destination_address,
	status, tx_hash, proof_ref, rejection_reason, admin_id`

type WithdrawalRepository struct {
	conn uow.DBTX
}

func NewWithdrawalRepository(conn uow.DBTX) *WithdrawalRepository {
	return &WithdrawalRepository{conn: conn}
}

func (r *WithdrawalRepository) Create(
	ctx context.Context,
	args repoargs.WithdrawalCreate,
) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(r.conn.QueryRow(ctx,
		`INSERT INTO withdrawals (user_id, asset, network, amount, destination_address, status, tx_hash, admin_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+withdrawalColumns,
		args.UserID, args.Asset, args.Network, args.Amount, args.DestinationAddress, args.Status, args.TxHash,
		args.AdminID,
	))
	if err != nil {
		return nil, convertErr(err, "creating withdrawal for user %d", args.UserID)
	}
	return w, nil
}

func (r *WithdrawalRepository) GetForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(r.conn.QueryRow(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id,
	))
	if err != nil {
		return nil, convertErr(err, "getting withdrawal %d", id)
	}
	return w, nil
}

func (r *WithdrawalRepository) ExistsByTxHash(ctx context.Context, txHash string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM withdrawals WHERE tx_hash = $1)`, txHash).
		Scan(&exists)
	if err != nil {
		return false, convertErr(err, "checking withdrawal tx hash")
	}
	return exists, nil
}

func (r *WithdrawalRepository) UpdateStatus(
	ctx context.Context,
	args repoargs.WithdrawalStatusUpdate,
) (*domain.Withdrawal, error) {
	w, err := scanWithdrawal(r.conn.QueryRow(ctx,
		`UPDATE withdrawals
		 SET status = $2,
		     admin_id = $3,
		     tx_hash = COALESCE(NULLIF($4, ''), tx_hash),
		     proof_ref = COALESCE(NULLIF($5, ''), proof_ref),
		     rejection_reason = COALESCE(NULLIF($6, ''), rejection_reason),
		     updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+withdrawalColumns,
		args.ID, args.Status, args.AdminID, args.TxHash, args.ProofRef, args.RejectionReason,
	))
	if err != nil {
		return nil, convertErr(err, "updating withdrawal %d", args.ID)
	}
	return w, nil
}

func (r *WithdrawalRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, convertErr(err, "getting withdrawals for user %d", userID)
	}
	return collectWithdrawals(rows, "getting withdrawals for user %d", userID)
}

func (r *WithdrawalRepository) GetByStatus(
	ctx context.Context,
	status domain.WithdrawalStatus,
	page repoargs.Page,
) ([]domain.Withdrawal, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawals WHERE status = $1 ORDER BY created_at, id LIMIT $2 OFFSET $3`,
		status, page.Limit, page.Offset,
	)
	if err != nil {
		return nil, convertErr(err, "getting withdrawals with status %s", status)
	}
	return collectWithdrawals(rows, "getting withdrawals with status %s", status)
}

func collectWithdrawals(rows pgx.Rows, format string, args ...any) ([]domain.Withdrawal, error) {
	defer rows.Close()

	var withdrawals []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, convertErr(err, format, args...)
		}
		withdrawals = append(withdrawals, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, format, args...)
	}
	return withdrawals, nil
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	err := row.Scan(
		&w.ID, &w.CreatedAt, &w.UpdatedAt, &w.UserID, &w.Asset, &w.Network, &w.Amount, &w.DestinationAddress,
		&w.Status, &w.TxHash, &w.ProofRef, &w.RejectionReason, &w.AdminID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan withdrawal: %w", err)
	}
	return &w, nil
}
