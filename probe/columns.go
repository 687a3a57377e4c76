package probe

import (
	"strconv"
	"strings"
)

// columnString coerces a diagnostic column value to a string.
//
// Drivers return text columns as string or []byte depending on the engine;
// both are accepted. A missing or NULL column yields ok=false.
func columnString(row map[string]any, name string) (string, bool) {
	value, present := row[name]
	if !present || value == nil {
		return "", false
	}

	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	}

	return "", false
}

// columnInt64 coerces a diagnostic column value to an int64.
//
// A missing or NULL column yields ok=false; the caller decides whether that
// means "unknown" (e.g. an unreported replication delay).
func columnInt64(row map[string]any, name string) (int64, bool) {
	value, present := row[name]
	if !present || value == nil {
		return 0, false
	}

	switch v := value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case uint64:
		return int64(v), true
	case float64:
		return int64(v), true
	case string:
		return parseInt64(v)
	case []byte:
		return parseInt64(string(v))
	}

	return 0, false
}

// columnBool coerces a diagnostic column value to a bool.
func columnBool(row map[string]any, name string) (bool, bool) {
	value, present := row[name]
	if !present || value == nil {
		return false, false
	}

	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		return parseBool(v)
	case []byte:
		return parseBool(string(v))
	case int64:
		return v != 0, true
	}

	return false, false
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "t", "true", "on", "1", "yes":
		return true, true
	case "f", "false", "off", "0", "no":
		return false, true
	}
	return false, false
}

func parseInt64(s string) (int64, bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
