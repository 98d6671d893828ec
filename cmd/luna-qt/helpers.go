package main

import (
	"fmt"
	"strconv"
	"strings"
)

// maxAmountDecimals bounds user-entered precision to what the wire
// format preserves.
const maxAmountDecimals = 8

// parseAmount converts a user-entered decimal string to ledger units.
func parseAmount(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty amount")
	}
	if strings.HasPrefix(s, "-") {
		return 0, fmt.Errorf("negative amount")
	}
	if parts := strings.SplitN(s, ".", 2); len(parts) == 2 && len(parts[1]) > maxAmountDecimals {
		return 0, fmt.Errorf("too many decimal places (max %d)", maxAmountDecimals)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount: %w", err)
	}
	if v <= 0 {
		return 0, fmt.Errorf("amount must be positive")
	}
	return v, nil
}

// formatAmount renders ledger units for display, trimming trailing
// zeros but always keeping one decimal place.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', maxAmountDecimals, 64)
	s = strings.TrimRight(s, "0")
	if strings.HasSuffix(s, ".") {
		s += "0"
	}
	return s
}
