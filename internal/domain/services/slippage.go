package services

import (
	"math/big"
	"regexp"

	"github.com/bimakw/dex-connector/internal/domain/entities"
)

// AllowedSlippageKey is the configuration key holding the default tolerance.
const AllowedSlippageKey = "connector.allowed_slippage"

var (
	fractionPattern = regexp.MustCompile(`^\s*(\d+)\s*/\s*(\d+)\s*$`)
	percentPattern  = regexp.MustCompile(`^\s*(\d+)(?:\.(\d+))?\s*%\s*$`)
)

// SlippageResolver turns an override or the configured default into an exact tolerance.
type SlippageResolver struct {
	configured string
}

func NewSlippageResolver(configured string) SlippageResolver {
	return SlippageResolver{configured: configured}
}

// Resolve returns N/D for an override of that form and the configured percent otherwise.
// Overrides that are empty, malformed or have a zero denominator fall back to the configuration.
func (r SlippageResolver) Resolve(override string) (entities.Percent, error) {
	if m := fractionPattern.FindStringSubmatch(override); m != nil {
		num, _ := new(big.Int).SetString(m[1], 10)
		den, _ := new(big.Int).SetString(m[2], 10)
		if den.Sign() > 0 {
			return entities.NewPercent(num, den), nil
		}
	}
	return ParsePercent(r.configured)
}

// ParsePercent parses "X%" or "X.Y%" into (X.Y)/100.
func ParsePercent(s string) (entities.Percent, error) {
	m := percentPattern.FindStringSubmatch(s)
	if m == nil {
		return entities.Percent{}, &ConfigurationError{Key: AllowedSlippageKey, Value: s}
	}

	whole, frac := m[1], m[2]
	num, _ := new(big.Int).SetString(whole+frac, 10)
	den := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(len(frac))), nil)
	den.Mul(den, big.NewInt(100))
	return entities.NewPercent(num, den), nil
}

// ValidPercent reports whether s is an accepted slippage setting.
func ValidPercent(s string) bool {
	return percentPattern.MatchString(s)
}
