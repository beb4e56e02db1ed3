package service

import (
	"context"
	"encoding/json"
	"slices"
	"sync"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"github.com/fsdevblog/groph-invest/internal/repository/repoargs"
	"github.com/fsdevblog/groph-invest/pkg/uow"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// memStore хранилище в памяти для проверки финансовых сценариев без Postgres.
type memStore struct {
	users       map[int64]*domain.User
	plans       map[int64]*domain.Plan
	wallets     map[int64]*domain.Wallet
	investments map[int64]*domain.Investment
	deposits    map[int64]*domain.Deposit
	withdrawals map[int64]*domain.Withdrawal
	ledger      []domain.LedgerEntry
	outbox      []domain.OutboxEvent
	audit       []repoargs.AuditCreate
	seq         int64
}

func newMemStore() *memStore {
	return &memStore{
		users:       map[int64]*domain.User{},
		plans:       map[int64]*domain.Plan{},
		wallets:     map[int64]*domain.Wallet{},
		investments: map[int64]*domain.Investment{},
		deposits:    map[int64]*domain.Deposit{},
		withdrawals: map[int64]*domain.Withdrawal{},
		seq:         1000,
	}
}

func (m *memStore) nextID() int64 {
	m.seq++
	return m.seq
}

func cloneMap[T any](src map[int64]*T, cp func(*T) *T) map[int64]*T {
	dst := make(map[int64]*T, len(src))
	for k, v := range src {
		dst[k] = cp(v)
	}
	return dst
}

func copyOf[T any](v *T) *T {
	c := *v
	return &c
}

func (m *memStore) clone() *memStore {
	return &memStore{
		users:       cloneMap(m.users, copyOf[domain.User]),
		plans:       cloneMap(m.plans, copyOf[domain.Plan]),
		wallets:     cloneMap(m.wallets, (*domain.Wallet).Clone),
		investments: cloneMap(m.investments, copyOf[domain.Investment]),
		deposits:    cloneMap(m.deposits, copyOf[domain.Deposit]),
		withdrawals: cloneMap(m.withdrawals, copyOf[domain.Withdrawal]),
		ledger:      slices.Clone(m.ledger),
		outbox:      slices.Clone(m.outbox),
		audit:       slices.Clone(m.audit),
		seq:         m.seq,
	}
}

func (m *memStore) repository(name uow.RepositoryName) (uow.Repository, error) {
	switch repoargs.RepositoryName(name) {
	case repoargs.UserRepoName:
		return &memUserRepo{m}, nil
	case repoargs.PlanRepoName:
		return &memPlanRepo{m}, nil
	case repoargs.WalletRepoName:
		return &memWalletRepo{m}, nil
	case repoargs.InvestmentRepoName:
		return &memInvestmentRepo{m}, nil
	case repoargs.DepositRepoName:
		return &memDepositRepo{m}, nil
	case repoargs.WithdrawalRepoName:
		return &memWithdrawalRepo{m}, nil
	case repoargs.LedgerRepoName:
		return &memLedgerRepo{m}, nil
	case repoargs.OutboxRepoName:
		return &memOutboxRepo{m}, nil
	case repoargs.AuditRepoName:
		return &memAuditRepo{m}, nil
	default:
		return nil, uow.ErrRepositoryNotRegistered
	}
}

// memUOW выполняет транзакции по одной и откатывает хранилище к снимку, сделанному перед fn,
// если fn вернула ошибку.
type memUOW struct {
	mu    sync.Mutex
	store *memStore
}

func (u *memUOW) Register(uow.RepositoryName, uow.RepositoryFactory) error {
	return nil
}

func (u *memUOW) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	snapshot := u.store.clone()
	if err := fn(ctx, memTX{u.store}); err != nil {
		*u.store = *snapshot
		return err
	}
	return nil
}

func (u *memUOW) GetRepository(name uow.RepositoryName) (uow.Repository, error) {
	return u.store.repository(name)
}

type memTX struct {
	store *memStore
}

func (t memTX) Get(name uow.RepositoryName) (uow.Repository, error) {
	return t.store.repository(name)
}

type memLedgerRepo struct{ s *memStore }

func (r *memLedgerRepo) Append(_ context.Context, e repoargs.LedgerEntryCreate) (*domain.LedgerEntry, error) {
	for _, existing := range r.s.ledger {
		if existing.ReferenceID == e.ReferenceID && existing.Type == e.Type {
			return nil, domain.ErrDuplicateKey
		}
	}
	entry := domain.LedgerEntry{
		ID:            r.s.nextID(),
		CreatedAt:     time.Now(),
		UserID:        e.UserID,
		Type:          e.Type,
		Asset:         e.Asset,
		Network:       e.Network,
		BalanceKey:    e.BalanceKey,
		Amount:        e.Amount,
		InvestedDelta: e.InvestedDelta,
		BalanceBefore: e.BalanceBefore,
		BalanceAfter:  e.BalanceAfter,
		ReferenceID:   e.ReferenceID,
	}
	r.s.ledger = append(r.s.ledger, entry)
	return &entry, nil
}

func (r *memLedgerRepo) SumByKey(_ context.Context, userID int64) (*repoargs.LedgerSums, error) {
	var byKey domain.Balances
	sums := &repoargs.LedgerSums{Invested: decimal.Zero}
	for _, e := range r.s.ledger {
		if e.UserID != userID {
			continue
		}
		byKey.Set(e.BalanceKey, byKey.Get(e.BalanceKey).Add(e.Amount))
		sums.Invested = sums.Invested.Add(e.InvestedDelta)
	}
	byKey.Range(func(key string, value decimal.Decimal) bool {
		sums.ByKey = append(sums.ByKey, repoargs.LedgerKeySum{BalanceKey: key, Amount: value})
		return true
	})
	return sums, nil
}

func (r *memLedgerRepo) GetByUserID(
	_ context.Context,
	userID int64,
	filter repoargs.LedgerFilter,
) ([]domain.LedgerEntry, error) {
	var res []domain.LedgerEntry
	for i := len(r.s.ledger) - 1; i >= 0; i-- {
		e := r.s.ledger[i]
		if e.UserID != userID {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, e.Type) {
			continue
		}
		if filter.Asset != "" && e.Asset != filter.Asset {
			continue
		}
		res = append(res, e)
	}
	return res, nil
}

func (m *memStore) entries(userID int64, t domain.EntryType) []domain.LedgerEntry {
	var res []domain.LedgerEntry
	for _, e := range m.ledger {
		if e.UserID == userID && e.Type == t {
			res = append(res, e)
		}
	}
	return res
}

type memWalletRepo struct{ s *memStore }

func (r *memWalletRepo) GetOrCreate(_ context.Context, userID int64) (*domain.Wallet, error) {
	w, ok := r.s.wallets[userID]
	if !ok {
		w = &domain.Wallet{ID: r.s.nextID(), UserID: userID, Status: domain.WalletStatusActive}
		r.s.wallets[userID] = w
	}
	return w.Clone(), nil
}

func (r *memWalletRepo) GetOrCreateForUpdate(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return r.GetOrCreate(ctx, userID)
}

func (r *memWalletRepo) Save(_ context.Context, w *domain.Wallet) error {
	r.s.wallets[w.UserID] = w.Clone()
	return nil
}

type memInvestmentRepo struct{ s *memStore }

func (r *memInvestmentRepo) Create(_ context.Context, a repoargs.InvestmentCreate) (*domain.Investment, error) {
	inv := &domain.Investment{
		ID:            r.s.nextID(),
		CreatedAt:     a.StartAt,
		UpdatedAt:     a.StartAt,
		UserID:        a.UserID,
		WalletID:      a.WalletID,
		DepositID:     a.DepositID,
		PlanID:        a.PlanID,
		Principal:     a.Principal,
		ProfitPercent: a.ProfitPercent,
		IntervalHours: a.IntervalHours,
		DurationDays:  a.DurationDays,
		StartAt:       a.StartAt,
		NextDueAt:     a.NextDueAt,
		TotalCredited: decimal.Zero,
		Status:        domain.InvestmentStatusActive,
	}
	r.s.investments[inv.ID] = inv
	return copyOf(inv), nil
}

func (r *memInvestmentRepo) GetForUpdate(_ context.Context, id int64) (*domain.Investment, error) {
	inv, ok := r.s.investments[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return copyOf(inv), nil
}

func (r *memInvestmentRepo) sorted(keep func(*domain.Investment) bool) []domain.Investment {
	var res []domain.Investment
	for _, inv := range r.s.investments {
		if keep(inv) {
			res = append(res, *inv)
		}
	}
	slices.SortFunc(res, func(a, b domain.Investment) int { return int(a.ID - b.ID) })
	return res
}

func (r *memInvestmentRepo) ListActiveForUpdate(_ context.Context, userID int64) ([]domain.Investment, error) {
	return r.sorted(func(inv *domain.Investment) bool {
		return inv.UserID == userID && inv.Status == domain.InvestmentStatusActive
	}), nil
}

func (r *memInvestmentRepo) ListDue(_ context.Context, a repoargs.DueInvestments) ([]domain.Investment, error) {
	res := r.sorted(func(inv *domain.Investment) bool {
		return inv.ID > a.AfterID && inv.IsDue(a.Now)
	})
	if uint(len(res)) > a.Limit {
		res = res[:a.Limit]
	}
	return res, nil
}

func (r *memInvestmentRepo) GetByUserID(_ context.Context, userID int64) ([]domain.Investment, error) {
	return r.sorted(func(inv *domain.Investment) bool { return inv.UserID == userID }), nil
}

func (r *memInvestmentRepo) Save(_ context.Context, inv *domain.Investment) error {
	r.s.investments[inv.ID] = copyOf(inv)
	return nil
}

type memDepositRepo struct{ s *memStore }

func (r *memDepositRepo) Create(_ context.Context, a repoargs.DepositCreate) (*domain.Deposit, error) {
	d := &domain.Deposit{
		ID:            r.s.nextID(),
		UserID:        a.UserID,
		PlanID:        a.PlanID,
		Asset:         a.Asset,
		Network:       a.Network,
		ClaimedAmount: a.ClaimedAmount,
		ProofRef:      a.ProofRef,
		TxHash:        a.TxHash,
		PaymentLink:   a.PaymentLink,
		Status:        domain.DepositStatusPending,
	}
	r.s.deposits[d.ID] = d
	return copyOf(d), nil
}

func (r *memDepositRepo) GetPendingForUpdate(_ context.Context, id int64) (*domain.Deposit, error) {
	d, ok := r.s.deposits[id]
	if !ok || d.Status != domain.DepositStatusPending {
		return nil, domain.ErrRecordNotFound
	}
	return copyOf(d), nil
}

func (r *memDepositRepo) CountApprovedByUserID(_ context.Context, userID int64) (int64, error) {
	var n int64
	for _, d := range r.s.deposits {
		if d.UserID == userID && d.Status == domain.DepositStatusApproved {
			n++
		}
	}
	return n, nil
}

func (r *memDepositRepo) UpdateStatus(_ context.Context, a repoargs.DepositStatusUpdate) (*domain.Deposit, error) {
	d, ok := r.s.deposits[a.ID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	adminID := a.AdminID
	d.Status = a.Status
	d.ApprovedAmount = a.ApprovedAmount
	d.AdminID = &adminID
	d.Remarks = a.Remarks
	d.ApprovedAt = a.ApprovedAt
	return copyOf(d), nil
}

func (r *memDepositRepo) GetByUserID(_ context.Context, userID int64) ([]domain.Deposit, error) {
	var res []domain.Deposit
	for _, d := range r.s.deposits {
		if d.UserID == userID {
			res = append(res, *d)
		}
	}
	return res, nil
}

func (r *memDepositRepo) GetByStatus(
	_ context.Context,
	status domain.DepositStatus,
	_ repoargs.Page,
) ([]domain.Deposit, error) {
	var res []domain.Deposit
	for _, d := range r.s.deposits {
		if d.Status == status {
			res = append(res, *d)
		}
	}
	return res, nil
}

type memWithdrawalRepo struct{ s *memStore }

func (r *memWithdrawalRepo) txHashUsed(txHash string, exceptID int64) bool {
	for _, w := range r.s.withdrawals {
		if txHash != "" && w.TxHash == txHash && w.ID != exceptID {
			return true
		}
	}
	return false
}

func (r *memWithdrawalRepo) Create(_ context.Context, a repoargs.WithdrawalCreate) (*domain.Withdrawal, error) {
	if r.txHashUsed(a.TxHash, 0) {
		return nil, domain.ErrDuplicateKey
	}
	w := &domain.Withdrawal{
		ID:                 r.s.nextID(),
		UserID:             a.UserID,
		Asset:              a.Asset,
		Network:            a.Network,
		Amount:             a.Amount,
		DestinationAddress: a.DestinationAddress,
		Status:             a.Status,
		TxHash:             a.TxHash,
		AdminID:            a.AdminID,
	}
	r.s.withdrawals[w.ID] = w
	return copyOf(w), nil
}

func (r *memWithdrawalRepo) GetForUpdate(_ context.Context, id int64) (*domain.Withdrawal, error) {
	w, ok := r.s.withdrawals[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return copyOf(w), nil
}

func (r *memWithdrawalRepo) ExistsByTxHash(_ context.Context, txHash string) (bool, error) {
	return r.txHashUsed(txHash, 0), nil
}

func (r *memWithdrawalRepo) UpdateStatus(
	_ context.Context,
	a repoargs.WithdrawalStatusUpdate,
) (*domain.Withdrawal, error) {
	w, ok := r.s.withdrawals[a.ID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	if r.txHashUsed(a.TxHash, a.ID) {
		return nil, domain.ErrDuplicateKey
	}
	adminID := a.AdminID
	w.Status = a.Status
	w.AdminID = &adminID
	if a.TxHash != "" {
		w.TxHash = a.TxHash
	}
	if a.ProofRef != "" {
		w.ProofRef = a.ProofRef
	}
	if a.RejectionReason != "" {
		w.RejectionReason = a.RejectionReason
	}
	return copyOf(w), nil
}

func (r *memWithdrawalRepo) GetByUserID(_ context.Context, userID int64) ([]domain.Withdrawal, error) {
	var res []domain.Withdrawal
	for _, w := range r.s.withdrawals {
		if w.UserID == userID {
			res = append(res, *w)
		}
	}
	return res, nil
}

func (r *memWithdrawalRepo) GetByStatus(
	_ context.Context,
	status domain.WithdrawalStatus,
	_ repoargs.Page,
) ([]domain.Withdrawal, error) {
	var res []domain.Withdrawal
	for _, w := range r.s.withdrawals {
		if w.Status == status {
			res = append(res, *w)
		}
	}
	return res, nil
}

type memPlanRepo struct{ s *memStore }

func (r *memPlanRepo) GetByID(_ context.Context, id int64) (*domain.Plan, error) {
	p, ok := r.s.plans[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return copyOf(p), nil
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) GetByID(_ context.Context, id int64) (*domain.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}
	return copyOf(u), nil
}

func (r *memUserRepo) UpdateLoyalty(_ context.Context, a repoargs.LoyaltyUpdate) error {
	u, ok := r.s.users[a.UserID]
	if !ok {
		return domain.ErrRecordNotFound
	}
	u.Points = a.Points
	u.Tier = a.Tier
	return nil
}

func (r *memUserRepo) SetActive(_ context.Context, id int64, active bool) error {
	u, ok := r.s.users[id]
	if !ok {
		return domain.ErrRecordNotFound
	}
	u.IsActive = active
	return nil
}

type memOutboxRepo struct{ s *memStore }

func (r *memOutboxRepo) Create(_ context.Context, a repoargs.OutboxEventCreate) error {
	payload, err := json.Marshal(a.Payload)
	if err != nil {
		return err //nolint:wrapcheck
	}
	r.s.outbox = append(r.s.outbox, domain.OutboxEvent{
		ID:      uuid.New(),
		Kind:    a.Kind,
		UserID:  a.UserID,
		Payload: payload,
		Status:  domain.EventStatusPending,
	})
	return nil
}

func (r *memOutboxRepo) Claim(_ context.Context, a repoargs.OutboxClaim) ([]domain.OutboxEvent, error) {
	var res []domain.OutboxEvent
	for i := range r.s.outbox {
		if uint(len(res)) == a.Limit {
			break
		}
		if r.s.outbox[i].Status == domain.EventStatusPending {
			r.s.outbox[i].Status = domain.EventStatusProcessing
			res = append(res, r.s.outbox[i])
		}
	}
	return res, nil
}

func (r *memOutboxRepo) MarkSent(_ context.Context, ids []uuid.UUID) error {
	for i := range r.s.outbox {
		if slices.Contains(ids, r.s.outbox[i].ID) {
			r.s.outbox[i].Status = domain.EventStatusSent
		}
	}
	return nil
}

func (r *memOutboxRepo) MarkFailed(_ context.Context, a repoargs.OutboxFailure) error {
	for i := range r.s.outbox {
		if r.s.outbox[i].ID != a.ID {
			continue
		}
		r.s.outbox[i].Attempts++
		r.s.outbox[i].LastError = a.Error
		r.s.outbox[i].Status = domain.EventStatusPending
		if r.s.outbox[i].Attempts >= a.MaxAttempts {
			r.s.outbox[i].Status = domain.EventStatusFailed
		}
	}
	return nil
}

// notifications возвращает заголовки уведомлений пользователя в порядке постановки.
func (m *memStore) notifications(userID int64) []string {
	var res []string
	for _, e := range m.outbox {
		if e.UserID != userID || e.Kind != domain.EventKindNotification {
			continue
		}
		var n domain.Notification
		if err := json.Unmarshal(e.Payload, &n); err == nil {
			res = append(res, n.Title)
		}
	}
	return res
}

// emails возвращает шаблоны писем пользователя в порядке постановки.
func (m *memStore) emails(userID int64) []string {
	var res []string
	for _, e := range m.outbox {
		if e.UserID != userID || e.Kind != domain.EventKindEmail {
			continue
		}
		var em domain.Email
		if err := json.Unmarshal(e.Payload, &em); err == nil {
			res = append(res, em.Template)
		}
	}
	return res
}

type memAuditRepo struct{ s *memStore }

func (r *memAuditRepo) Create(_ context.Context, a repoargs.AuditCreate) error {
	r.s.audit = append(r.s.audit, a)
	return nil
}

// memCodes проверяет коды подтверждения без хеширования.
type memCodes struct {
	mu       sync.Mutex
	codes    map[int64]string
	redeemed []int64
}

func (c *memCodes) Issue(_ context.Context, userID int64) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.codes[userID] = "123456"
	return "123456", nil
}

func (c *memCodes) Redeem(_ context.Context, userID int64, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if stored, ok := c.codes[userID]; !ok || stored != code {
		return domain.ErrInvalidVerificationCode
	}
	delete(c.codes, userID)
	c.redeemed = append(c.redeemed, userID)
	return nil
}
