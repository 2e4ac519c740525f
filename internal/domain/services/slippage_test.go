package services

import (
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bimakw/dex-connector/internal/domain/entities"
)

func TestResolveOverride(t *testing.T) {
	tests := []struct {
		override string
		num, den int64
	}{
		{"1/100", 1, 100},
		{"3/7", 3, 7},
		{"  5 / 1000 ", 5, 1000},
		{"0/1", 0, 1},
		{"250/100", 250, 100},
	}

	// the configured value is never consulted when the override is usable
	for _, configured := range []string{"1%", "broken"} {
		r := NewSlippageResolver(configured)
		for _, tt := range tests {
			got, err := r.Resolve(tt.override)
			require.NoError(t, err, tt.override)
			assert.Equal(t, big.NewInt(tt.num), got.Num, tt.override)
			assert.Equal(t, big.NewInt(tt.den), got.Den, tt.override)
		}
	}
}

func TestResolveFallsBackToConfigured(t *testing.T) {
	r := NewSlippageResolver("2%")
	want := entities.NewPercent(big.NewInt(2), big.NewInt(100))

	for _, override := range []string{"", "1/0", "abc", "1.5/100", "-1/100", "1%"} {
		got, err := r.Resolve(override)
		require.NoError(t, err, override)
		assert.Equal(t, 0, got.Cmp(want), "override %q", override)
	}
}

func TestParsePercent(t *testing.T) {
	tests := []struct {
		in       string
		num, den int64
	}{
		{"1%", 1, 100},
		{"0.5%", 5, 1000},
		{" 2.25 % ", 225, 10000},
		{"10%", 10, 100},
		{"0%", 0, 100},
		{"0.05%", 5, 10000},
	}
	for _, tt := range tests {
		got, err := ParsePercent(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, 0, got.Cmp(entities.NewPercent(big.NewInt(tt.num), big.NewInt(tt.den))), tt.in)
		assert.True(t, ValidPercent(tt.in))
	}
}

func TestMalformedConfiguredSlippage(t *testing.T) {
	for _, configured := range []string{"", "1", "one%", "1.%", "%", "1/100", "-1%"} {
		r := NewSlippageResolver(configured)
		_, err := r.Resolve("")

		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr), "configured %q", configured)
		assert.Equal(t, AllowedSlippageKey, cfgErr.Key)
		assert.Equal(t, configured, cfgErr.Value)
		assert.False(t, ValidPercent(configured))
	}
}
