package utils

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var hundred = decimal.NewFromInt(100)

// GenerateAccountNumber generates an 8-digit account number starting with 01
func GenerateAccountNumber() (string, error) {
	return generateAccountNumber(rand.Reader)
}

func generateAccountNumber(r io.Reader) (string, error) {
	num, err := rand.Int(r, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("failed to generate account number: %w", err)
	}
	return fmt.Sprintf("01%06d", num.Int64()), nil
}

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword checks if a password matches a hash
func CheckPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// ValidAmount reports whether amount is strictly positive with no more than
// two decimal places.
func ValidAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	cents := amount.Mul(hundred)
	return cents.Equal(cents.Floor())
}
