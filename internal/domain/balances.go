package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
)

const (
	// BalanceScale кол-во знаков после запятой, с которым суммы сохраняются в хранилище.
	BalanceScale int32 = 8

	AssetUSDT     = "USDT"
	AssetUSDC     = "USDC"
	NetworkSystem = "SYSTEM"
)

// IsStablecoin возвращает true для активов, баланс которых хранится без указания сети и может
// пополняться из инвестированного капитала.
func IsStablecoin(asset string) bool {
	a := strings.ToUpper(asset)
	return a == AssetUSDT || a == AssetUSDC
}

// BalanceKey формирует ключ баланса кошелька. Для стейблкоинов ключом является сам символ актива,
// для остальных - "АКТИВ_СЕТЬ".
func BalanceKey(asset, network string) string {
	a := strings.ToUpper(strings.TrimSpace(asset))
	if IsStablecoin(a) {
		return a
	}
	return a + "_" + strings.ToUpper(strings.TrimSpace(network))
}

// RoundAmount округляет сумму до BalanceScale знаков.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(BalanceScale)
}

// Balances упорядоченное отображение ключа баланса в сумму. Ключи всегда отсортированы, поэтому обход и
// сериализация детерминированы. Нулевое значение готово к использованию.
type Balances struct {
	keys   []string
	values map[string]decimal.Decimal
}

func NewBalances(values map[string]decimal.Decimal) Balances {
	var b Balances
	for k, v := range values {
		b.Set(k, v)
	}
	return b
}

// Get возвращает баланс по ключу или ноль.
func (b *Balances) Get(key string) decimal.Decimal {
	if v, ok := b.values[key]; ok {
		return v
	}
	return decimal.Zero
}

func (b *Balances) Has(key string) bool {
	_, ok := b.values[key]
	return ok
}

// Set устанавливает баланс по ключу, сохраняя порядок ключей.
func (b *Balances) Set(key string, value decimal.Decimal) {
	if b.values == nil {
		b.values = make(map[string]decimal.Decimal)
	}
	if _, ok := b.values[key]; !ok {
		pos, _ := slices.BinarySearch(b.keys, key)
		b.keys = slices.Insert(b.keys, pos, key)
	}
	b.values[key] = value
}

// Keys возвращает копию отсортированных ключей.
func (b *Balances) Keys() []string {
	return slices.Clone(b.keys)
}

func (b *Balances) Len() int {
	return len(b.keys)
}

// Range обходит балансы в порядке ключей, пока fn возвращает true.
func (b *Balances) Range(fn func(key string, value decimal.Decimal) bool) {
	for _, k := range b.keys {
		if !fn(k, b.values[k]) {
			return
		}
	}
}

// Clone возвращает независимую копию.
func (b *Balances) Clone() Balances {
	var c Balances
	b.Range(func(key string, value decimal.Decimal) bool {
		c.Set(key, value)
		return true
	})
	return c
}

func (b Balances) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range b.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, fmt.Errorf("marshal balance key: %w", err)
		}
		value, err := b.values[k].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("marshal balance %s: %w", k, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (b *Balances) UnmarshalJSON(data []byte) error {
	var raw map[string]decimal.Decimal
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("unmarshal balances: %w", err)
	}
	*b = NewBalances(raw)
	return nil
}
