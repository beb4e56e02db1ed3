package repoargs

type RepositoryName string

const (
	UserRepoName       RepositoryName = "user"
	PlanRepoName       RepositoryName = "plan"
	WalletRepoName     RepositoryName = "wallet"
	InvestmentRepoName RepositoryName = "investment"
	DepositRepoName    RepositoryName = "deposit"
	WithdrawalRepoName RepositoryName = "withdrawal"
	LedgerRepoName     RepositoryName = "ledger"
	OutboxRepoName     RepositoryName = "outbox"
	AuditRepoName      RepositoryName = "audit"
)

// Page параметры постраничной выборки.
type Page struct {
	Limit  uint
	Offset uint
}
