// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinCost is the cheapest bcrypt cost; tests use it to keep hashing fast.
const MinCost = bcrypt.MinCost

// ErrBadCost is returned for a bcrypt cost outside [MinCost, bcrypt.MaxCost].
var ErrBadCost = errors.New("invalid bcrypt cost")

// Hasher hashes passwords for the users table at a fixed bcrypt cost.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher for cost. Zero selects bcrypt.DefaultCost.
func NewHasher(cost int) (Hasher, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	if err := ValidateCost(cost); err != nil {
		return Hasher{}, err
	}
	return Hasher{cost: cost}, nil
}

// ValidateCost accepts zero (the default) or a cost bcrypt supports.
func ValidateCost(cost int) error {
	if cost != 0 && (cost < bcrypt.MinCost || cost > bcrypt.MaxCost) {
		return fmt.Errorf("cost %d: %w", cost, ErrBadCost)
	}
	return nil
}

// Cost returns the bcrypt cost; the zero Hasher uses the default.
func (h Hasher) Cost() int {
	if h.cost == 0 {
		return bcrypt.DefaultCost
	}
	return h.cost
}

// Hash returns the bcrypt hash of a login password.
func (h Hasher) Hash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.Cost())
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches a stored hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
