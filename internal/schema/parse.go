package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// ParsePrice converts a decimal string to a scaled Price.
func ParsePrice(s string, scale Scale) (Price, error) {
	v, err := parseScaledInt(s, int(scale))
	return Price(v), err
}

// ParseQuantity converts a decimal string to a scaled Quantity.
func ParseQuantity(s string, scale Scale) (Quantity, error) {
	v, err := parseScaledInt(s, int(scale))
	return Quantity(v), err
}

func parseScaledInt(s string, scale int) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty decimal string")
	}
	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}

	intPart := s
	fracPart := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		intPart, fracPart = s[:idx], s[idx+1:]
	}
	if intPart == "" {
		intPart = "0"
	}
	if len(fracPart) > scale {
		// Truncate toward zero rather than reject: venue feeds often
		// carry more precision than the configured scale.
		fracPart = fracPart[:scale]
	}
	for len(fracPart) < scale {
		fracPart += "0"
	}

	v, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse scaled decimal %q: %w", s, err)
	}
	if neg {
		v = -v
	}
	return v, nil
}
