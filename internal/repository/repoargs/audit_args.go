package repoargs

type AuditCreate struct {
	AdminID  int64
	Action   string
	Entity   string
	EntityID string
	Before   any
	After    any
}
