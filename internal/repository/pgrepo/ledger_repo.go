package pgrepo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const ledgerColumns = `id, created_at, user_id, entry_type, asset, network, balance_key, amount, invested_delta,
	balance_before, balance_after, reference_id`

type LedgerRepository struct {
	conn uow.DBTX
}

func NewLedgerRepository(conn uow.DBTX) *LedgerRepository {
	return &LedgerRepository{conn: conn}
}

// Append добавляет запись в журнал. Если запись с такой парой (reference_id, entry_type) уже есть,
// возвращает domain.ErrDuplicateKey, не прерывая текущую транзакцию.
func (r *LedgerRepository) Append(
	ctx context.Context,
	entry repoargs.LedgerEntryCreate,
) (*domain.LedgerEntry, error) {
	row := r.conn.QueryRow(ctx,
		`INSERT INTO ledger_entries (user_id, entry_type, asset, network, balance_key, amount, invested_delta,
		                             balance_before, balance_after, reference_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (reference_id, entry_type) DO NOTHING
		 RETURNING `+ledgerColumns,
		entry.UserID, entry.Type, entry.Asset, entry.Network, entry.BalanceKey, entry.Amount,
		entry.InvestedDelta, entry.BalanceBefore, entry.BalanceAfter, entry.ReferenceID,
	)
	e, err := scanLedgerEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf(
				"[repository/appending %s %s] %w", entry.Type, entry.ReferenceID, domain.ErrDuplicateKey,
			)
		}
		return nil, convertErr(err, "appending %s %s", entry.Type, entry.ReferenceID)
	}
	return e, nil
}

// SumByKey считает суммы движений пользователя по ключам баланса и по инвестированному капиталу.
func (r *LedgerRepository) SumByKey(ctx context.Context, userID int64) (*repoargs.LedgerSums, error) {
	rows, err := r.conn.Query(ctx,
		`SELECT balance_key, SUM(amount), SUM(invested_delta)
		 FROM ledger_entries WHERE user_id = $1
		 GROUP BY balance_key
		 ORDER BY balance_key`,
		userID,
	)
	if err != nil {
		return nil, convertErr(err, "summing ledger for user %d", userID)
	}
	defer rows.Close()

	sums := &repoargs.LedgerSums{Invested: decimal.Zero}
	for rows.Next() {
		var keySum repoargs.LedgerKeySum
		var invested decimal.Decimal
		if scanErr := rows.Scan(&keySum.BalanceKey, &keySum.Amount, &invested); scanErr != nil {
			return nil, convertErr(scanErr, "summing ledger for user %d", userID)
		}
		sums.ByKey = append(sums.ByKey, keySum)
		sums.Invested = sums.Invested.Add(invested)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "summing ledger for user %d", userID)
	}
	return sums, nil
}

// GetByUserID возвращает записи журнала пользователя от новых к старым с учетом фильтра.
func (r *LedgerRepository) GetByUserID(
	ctx context.Context,
	userID int64,
	filter repoargs.LedgerFilter,
) ([]domain.LedgerEntry, error) {
	query, args := buildLedgerQuery(userID, filter)
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, convertErr(err, "getting ledger for user %d", userID)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e, scanErr := scanLedgerEntry(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "getting ledger for user %d", userID)
		}
		entries = append(entries, *e)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "getting ledger for user %d", userID)
	}
	return entries, nil
}

func buildLedgerQuery(userID int64, filter repoargs.LedgerFilter) (string, []any) {
	var sb strings.Builder
	args := []any{userID}
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	sb.WriteString(`SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE user_id = $1`)
	if len(filter.Types) > 0 {
		types := make([]string, len(filter.Types))
		for i, t := range filter.Types {
			types[i] = string(t)
		}
		sb.WriteString(` AND entry_type = ANY(` + next(types) + `)`)
	}
	if filter.Asset != "" {
		sb.WriteString(` AND asset = ` + next(strings.ToUpper(filter.Asset)))
	}
	if filter.From != nil {
		sb.WriteString(` AND created_at >= ` + next(*filter.From))
	}
	if filter.To != nil {
		sb.WriteString(` AND created_at < ` + next(*filter.To))
	}
	sb.WriteString(` ORDER BY created_at DESC, id DESC`)
	if filter.Limit > 0 {
		sb.WriteString(` LIMIT ` + next(filter.Limit))
	}
	if filter.Offset > 0 {
		sb.WriteString(` OFFSET ` + next(filter.Offset))
	}
	return sb.String(), args
}

func scanLedgerEntry(row pgx.Row) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	err := row.Scan(
		&e.ID, &e.CreatedAt, &e.UserID, &e.Type, &e.Asset, &e.Network, &e.BalanceKey, &e.Amount,
		&e.InvestedDelta, &e.BalanceBefore, &e.BalanceAfter, &e.ReferenceID,
	)
	if err != nil {
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	return &e, nil
}
