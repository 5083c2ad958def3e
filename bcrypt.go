package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher is the PasswordHasher backed by bcrypt
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a hasher using cost, never below bcrypt.DefaultCost
func NewBcryptHasher(cost int) *BcryptHasher {
	return &BcryptHasher{cost: effectiveCost(cost)}
}

// Cost returns the cost actually used
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash will generate a password hash
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare will validate the given cleartext password matches the hashed
// password. bcrypt compares in constant time.
func (h *BcryptHasher) Compare(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

func effectiveCost(cost int) int {
	if limit := passwordHashCostLimit(); limit > 0 {
		return limit
	}
	if cost < bcrypt.DefaultCost {
		return bcrypt.DefaultCost
	}
	if cost > bcrypt.MaxCost {
		return bcrypt.MaxCost
	}
	return cost
}
