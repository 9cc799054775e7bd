// Package utils provides common utility functions for input validation.
//
// This package contains utilities shared by the HTTP layer and the currency
// converter: validating transaction currency codes against the supported set
// and parsing top-N limit query parameters.
package utils

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Error definitions for validation functions
var (
	ErrEmptyCurrency       = errors.New("currency code cannot be empty")
	ErrUnsupportedCurrency = errors.New("unsupported currency")
	ErrInvalidLimit        = errors.New("invalid limit")
)

// SupportedCurrencies contains the origin currencies the service accepts.
// This map is used for O(1) lookup performance when validating transactions.
var SupportedCurrencies = map[string]bool{
	"USD": true, // United States dollar (the reference currency)
	"EUR": true, // Euro
	"GBP": true, // British pound
	"JPY": true, // Japanese yen
	"AUD": true, // Australian dollar
}

// supportedCurrenciesCache is a pre-computed string of supported currencies
// to avoid rebuilding this string on every validation error.
var supportedCurrenciesCache = joinKeys(SupportedCurrencies)

// ValidateCurrency validates that a currency code is a supported
// three-letter ISO code. The check is case-insensitive.
func ValidateCurrency(code string) error {
	if code == "" {
		return ErrEmptyCurrency
	}

	normalized := strings.ToUpper(code)
	if len(normalized) != 3 {
		return fmt.Errorf("%w: expected a 3-letter code, got %q", ErrUnsupportedCurrency, code)
	}

	if !SupportedCurrencies[normalized] {
		return fmt.Errorf("%w: %s (supported: %s)",
			ErrUnsupportedCurrency, normalized, supportedCurrenciesCache)
	}

	return nil
}

// NormalizeCurrency returns the canonical upper-case form of a supported
// currency code, validating it first.
func NormalizeCurrency(code string) (string, error) {
	if err := ValidateCurrency(code); err != nil {
		return "", err
	}
	return strings.ToUpper(code), nil
}

// ParseLimit parses a top-N limit query parameter.
//
// An empty raw value yields the default. Negative limits and values that are
// not integers are rejected; a zero limit is valid and yields an empty
// result set downstream.
func ParseLimit(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidLimit, raw)
	}

	if limit < 0 {
		return 0, fmt.Errorf("%w: must not be negative, got %d", ErrInvalidLimit, limit)
	}

	return limit, nil
}

// joinKeys builds a comma-separated string of the keys of a set.
// This function is used to generate user-friendly error messages.
//
// Note: The order of entries in the returned string is not guaranteed due to
// Go's map iteration order being unspecified.
func joinKeys(set map[string]bool) string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	return strings.Join(keys, ", ")
}
