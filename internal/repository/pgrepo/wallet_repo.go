package pgrepo

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, created_at, updated_at, user_id, invested_principal, total_profit, status, locked`

type WalletRepository struct {
	conn uow.DBTX
}

func NewWalletRepository(conn uow.DBTX) *WalletRepository {
	return &WalletRepository{conn: conn}
}

// GetOrCreate возвращает кошелек пользователя, создавая его при отсутствии.
func (r *WalletRepository) GetOrCreate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return r.getOrCreate(ctx, userID, false)
}

// GetOrCreateForUpdate то же, что GetOrCreate, но блокирует строку кошелька до конца транзакции.
func (r *WalletRepository) GetOrCreateForUpdate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return r.getOrCreate(ctx, userID, true)
}

// getOrCreate создает кошелек через ON CONFLICT DO NOTHING, поэтому гонка двух создателей разрешается
// в пользу уже существующей записи.
func (r *WalletRepository) getOrCreate(ctx context.Context, userID int64, forUpdate bool) (*domain.Wallet, error) {
	_, insErr := r.conn.Exec(ctx,
		`INSERT INTO wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if insErr != nil {
		return nil, convertErr(insErr, "creating wallet for user %d", userID)
	}

	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	w, scanErr := scanWallet(r.conn.QueryRow(ctx, query, userID))
	if scanErr != nil {
		return nil, convertErr(scanErr, "getting wallet for user %d", userID)
	}

	if err := r.loadBalances(ctx, w); err != nil {
		return nil, err
	}
	return w, nil
}

func (r *WalletRepository) loadBalances(ctx context.Context, w *domain.Wallet) error {
	rows, err := r.conn.Query(ctx,
		`SELECT balance_key, amount FROM wallet_balances WHERE wallet_id = $1 ORDER BY balance_key`,
		w.ID,
	)
	if err != nil {
		return convertErr(err, "getting balances for wallet %d", w.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var amount decimal.Decimal
		if scanErr := rows.Scan(&key, &amount); scanErr != nil {
			return convertErr(scanErr, "scanning balance for wallet %d", w.ID)
		}
		w.Balances.Set(key, amount)
	}
	return convertErr(rows.Err(), "reading balances for wallet %d", w.ID)
}

// Save сохраняет состояние кошелька и все его балансы одним батчем.
func (r *WalletRepository) Save(ctx context.Context, w *domain.Wallet) error {
	batch := new(pgx.Batch)
	batch.Queue(
		`UPDATE wallets
		 SET invested_principal = $2, total_profit = $3, status = $4, locked = $5, updated_at = NOW()
		 WHERE id = $1`,
		w.ID, w.InvestedPrincipal, w.TotalProfit, w.Status, w.Locked,
	)
	w.Balances.Range(func(key string, amount decimal.Decimal) bool {
		batch.Queue(
			`INSERT INTO wallet_balances (wallet_id, balance_key, amount)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (wallet_id, balance_key) DO UPDATE SET amount = EXCLUDED.amount, updated_at = NOW()`,
			w.ID, key, amount,
		)
		return true
	})

	br := r.conn.SendBatch(ctx, batch)
	for i := range batch.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return convertErr(err, "saving wallet %d (statement %d)", w.ID, i)
		}
	}
	if err := br.Close(); err != nil {
		return convertErr(err, "saving wallet %d", w.ID)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.ID, &w.CreatedAt, &w.UpdatedAt, &w.UserID,
		&w.InvestedPrincipal, &w.TotalProfit, &w.Status, &w.Locked,
	)
	if err != nil {
		return nil, fmt.Errorf("scan wallet: %w", err)
	}
	return &w, nil
}
