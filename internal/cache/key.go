package cache

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxKeyLength is the longest key accepted, in characters.
	MaxKeyLength = 64
	// ReservedChars may not appear in keys or namespaces.
	ReservedChars = `{}()/\@:`
)

// ValidateKey reports whether key may be used with any backend.
func ValidateKey(key string) error {
	n := utf8.RuneCountInString(key)
	if n == 0 {
		return fmt.Errorf("%w: key is empty", ErrInvalidKey)
	}
	if n > MaxKeyLength {
		return fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidKey, key, MaxKeyLength)
	}
	if i := strings.IndexAny(key, ReservedChars); i >= 0 {
		return fmt.Errorf("%w: %q contains reserved character %q", ErrInvalidKey, key, key[i])
	}
	return nil
}

// ValidateKeys validates every key and returns the first failure.
func ValidateKeys(keys []string) error {
	for _, k := range keys {
		if err := ValidateKey(k); err != nil {
			return err
		}
	}
	return nil
}

// ParseKey converts an untyped value, typically decoded JSON, into a valid key.
func ParseKey(raw any) (string, error) {
	key, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected a string, got %T", ErrInvalidKey, raw)
	}
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

// ParseKeys converts an untyped list into keys. A value that is not a list
// fails with ErrInvalidArgument; any element that is not a valid key fails the
// whole list with ErrInvalidKey.
func ParseKeys(raw any) ([]string, error) {
	var keys []string
	switch v := raw.(type) {
	case []string:
		keys = v
	case []any:
		keys = make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: expected a string, got %T", ErrInvalidKey, item)
			}
			keys = append(keys, s)
		}
	default:
		return nil, fmt.Errorf("%w: expected a list of keys, got %T", ErrInvalidArgument, raw)
	}
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	return keys, nil
}

func validateNamespace(ns string) error {
	if i := strings.IndexAny(ns, ReservedChars); i >= 0 {
		return fmt.Errorf("%w: namespace %q contains reserved character %q", ErrInvalidArgument, ns, ns[i])
	}
	return nil
}
