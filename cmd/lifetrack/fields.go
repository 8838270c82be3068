package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mmcdole/lifetrack/internal/domain"
)

// parseFields turns key=value arguments into a record. Values that parse
// as numbers or booleans are stored typed; a value may be quoted to keep
// it a string.
func parseFields(args []string) (domain.Record, error) {
	rec := make(domain.Record, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: expected key=value, got %q", errUsage, arg)
		}
		if err := domain.ValidateIdentifier(k); err != nil {
			return nil, err
		}
		rec[k] = parseValue(v)
	}
	return rec, nil
}

func parseValue(v string) any {
	if len(v) >= 2 && v[0] == '"' && v[len(v)-1] == '"' {
		return v[1 : len(v)-1]
	}
	switch v {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}
	// Leading zeros mark codes and times, not numbers
	if len(v) > 1 && v[0] == '0' && v[1] != '.' {
		return v
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return v
}
