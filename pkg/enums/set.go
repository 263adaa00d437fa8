package enums

import (
	"fmt"
	"slices"
)

func member[T ~string](set []T, v T) bool {
	return slices.Contains(set, v)
}

// parse matches value exactly; what names the enum in the error.
func parse[T ~string](set []T, value, what string) (T, error) {
	if v := T(value); member(set, v) {
		return v, nil
	}
	return "", fmt.Errorf("invalid %s %q", what, value)
}
