package verification

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// codeHasher хеширует одноразовые коды так же, как пароли: в хранилище никогда не попадает сам код.
type codeHasher struct {
	cost int
}

func (h codeHasher) Hash(code string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(code), h.cost)
	if err != nil {
		return "", fmt.Errorf("hashing verification code: %s", err.Error())
	}
	return string(bytes), nil
}

func (h codeHasher) Compare(code, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(code))
	return err == nil
}
