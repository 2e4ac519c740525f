package services

import (
	"fmt"

	"github.com/bimakw/dex-connector/internal/domain/entities"
)

// ServiceUninitializedCode marks operations attempted before the chain client is ready.
const ServiceUninitializedCode = 1001

// InitializationError is returned when the connector or its chain client is not ready.
type InitializationError struct {
	Code    int
	Message string
}

func (e *InitializationError) Error() string {
	return fmt.Sprintf("initialization error %d: %s", e.Code, e.Message)
}

func errUninitialized(message string) *InitializationError {
	return &InitializationError{Code: ServiceUninitializedCode, Message: message}
}

// ConfigurationError reports a configured value that cannot be parsed.
type ConfigurationError struct {
	Key   string
	Value string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("malformed configuration %s: %q", e.Key, e.Value)
}

// PriceError is returned when no trade exists between two tokens.
type PriceError struct {
	Base  entities.Token
	Quote entities.Token
	// Err is the pair lookup failure behind the missing trade, if any.
	Err error
}

func (e *PriceError) Error() string {
	return fmt.Sprintf("no trade pair found for %s to %s", e.Base.Address.Hex(), e.Quote.Address.Hex())
}

func (e *PriceError) Unwrap() error { return e.Err }
