package card

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/EClaesson/go-luhn"
	"github.com/amirasaad/bankcards/pkg/domain"
)

// NumberLength is the number of digits in a card number.
const NumberLength = 16

const maskPrefix = "**** **** **** "

var (
	numberRegex = regexp.MustCompile(`^[0-9]{16}$`)
	digitsRegex = regexp.MustCompile(`^[0-9]*$`)
)

// ValidateNumber checks the card number is exactly 16 digits.
func ValidateNumber(number string) error {
	if !numberRegex.MatchString(number) {
		return fmt.Errorf("%w: card number must be %d digits", domain.ErrValidation, NumberLength)
	}
	return nil
}

// Mask hides everything but the last four digits of number.
func Mask(number string) string {
	if len(number) < 4 {
		return number
	}
	return maskPrefix + LastFour(number)
}

// LastFour returns the trailing four digits of number.
func LastFour(number string) string {
	if len(number) < 4 {
		return number
	}
	return number[len(number)-4:]
}

// GenerateNumber returns a random Luhn-valid card number starting with prefix.
func GenerateNumber(prefix string) (string, error) {
	if len(prefix) >= NumberLength || !digitsRegex.MatchString(prefix) {
		return "", fmt.Errorf("%w: invalid card number prefix %q", domain.ErrValidation, prefix)
	}
	var b strings.Builder
	b.WriteString(prefix)
	for b.Len() < NumberLength-1 {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate card number: %w", err)
		}
		b.WriteString(d.String())
	}
	body := b.String()
	for check := 0; check < 10; check++ {
		candidate := fmt.Sprintf("%s%d", body, check)
		if ok, err := luhn.IsValid(candidate); err == nil && ok {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("generate card number: no check digit for %s", body)
}
