package verification

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/fsdevblog/groph-invest/internal/domain"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCodeTTL     = 10 * time.Minute
	DefaultMaxAttempts = 5
	codeDigits         = 6
	keyPrefix          = "withdraw:code:"
	attemptsKeyPrefix  = "withdraw:attempts:"
)

var (
	ErrCodeNotFound = errors.New("verification code not found")
	// ErrTooManyAttempts код погашен после исчерпания попыток ввода.
	ErrTooManyAttempts = fmt.Errorf("%w: too many attempts", domain.ErrInvalidVerificationCode)
)

//go:generate mockgen -source=codes.go -destination=mocks/mocks.go -package=mocks

// Storage хранилище хешей кодов с ограниченным временем жизни.
type Storage interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	// Get возвращает ErrCodeNotFound, если значения нет или оно истекло.
	Get(ctx context.Context, key string) (string, error)
	Delete(ctx context.Context, keys ...string) error
	// DeleteIfEqual атомарно удаляет ключ, только если его значение равно value. Возвращает false,
	// если значение уже другое или ключа нет.
	DeleteIfEqual(ctx context.Context, key, value string) (bool, error)
	// Incr атомарно увеличивает счетчик. TTL выставляется при создании счетчика.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)
}

// Codes выдает и проверяет одноразовые коды подтверждения вывода средств.
type Codes struct {
	storage     Storage
	hasher      codeHasher
	ttl         time.Duration
	maxAttempts int64
}

func NewCodes(storage Storage) *Codes {
	return &Codes{
		storage:     storage,
		hasher:      codeHasher{cost: bcrypt.DefaultCost},
		ttl:         DefaultCodeTTL,
		maxAttempts: DefaultMaxAttempts,
	}
}

// SetTTL задает время жизни кода.
func (c *Codes) SetTTL(ttl time.Duration) *Codes {
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// SetMaxAttempts задает число попыток ввода одного кода.
func (c *Codes) SetMaxAttempts(n int64) *Codes {
	if n > 0 {
		c.maxAttempts = n
	}
	return c
}

// SetHashCost задает стоимость bcrypt.
func (c *Codes) SetHashCost(cost int) *Codes {
	c.hasher.cost = cost
	return c
}

// Issue генерирует новый код из шести цифр, заменяя предыдущий, и сохраняет его хеш. Возвращает сам код
// для отправки пользователю.
func (c *Codes) Issue(ctx context.Context, userID int64) (string, error) {
	code, genErr := generateCode(codeDigits)
	if genErr != nil {
		return "", genErr
	}
	hash, hashErr := c.hasher.Hash(code)
	if hashErr != nil {
		return "", hashErr
	}
	if err := c.storage.Set(ctx, storageKey(userID), hash, c.ttl); err != nil {
		return "", fmt.Errorf("storing verification code: %w", err)
	}
	if err := c.storage.Delete(ctx, attemptsKey(userID)); err != nil {
		return "", fmt.Errorf("resetting verification attempts: %w", err)
	}
	return code, nil
}

// Redeem проверяет и гасит код одной операцией: из нескольких одновременных вызовов с верным кодом
// успешен только один. Отсутствующий, истекший, неверный или уже погашенный код возвращает
// domain.ErrInvalidVerificationCode. После maxAttempts попыток код удаляется и возвращается ErrTooManyAttempts.
func (c *Codes) Redeem(ctx context.Context, userID int64, code string) error {
	key := storageKey(userID)

	attempts, incrErr := c.storage.Incr(ctx, attemptsKey(userID), c.ttl)
	if incrErr != nil {
		return fmt.Errorf("counting verification attempts: %w", incrErr)
	}
	if attempts > c.maxAttempts {
		if err := c.storage.Delete(ctx, key); err != nil {
			return fmt.Errorf("revoking verification code: %w", err)
		}
		return ErrTooManyAttempts
	}

	hash, getErr := c.storage.Get(ctx, key)
	if getErr != nil {
		if errors.Is(getErr, ErrCodeNotFound) {
			return domain.ErrInvalidVerificationCode
		}
		return fmt.Errorf("loading verification code: %w", getErr)
	}
	if !c.hasher.Compare(code, hash) {
		return domain.ErrInvalidVerificationCode
	}

	deleted, delErr := c.storage.DeleteIfEqual(ctx, key, hash)
	if delErr != nil {
		return fmt.Errorf("consuming verification code: %w", delErr)
	}
	if !deleted {
		return domain.ErrInvalidVerificationCode
	}
	return nil
}

func storageKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}

func attemptsKey(userID int64) string {
	return attemptsKeyPrefix + strconv.FormatInt(userID, 10)
}

func generateCode(digits int) (string, error) {
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil) //nolint:mnd
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generating verification code: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n.Int64()), nil
}
