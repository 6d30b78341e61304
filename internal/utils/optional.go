// Package utils holds helpers for the optional (nullable) fields of the JSON documents.
package utils

import "strings"

func Ptr[T any](v T) *T {
	return &v
}

// Deref returns the zero value for nil.
func Deref[T any](v *T) T {
	if v == nil {
		var zero T
		return zero
	}
	return *v
}

// NonBlank returns nil for an empty or all whitespace string, so it is written as null.
func NonBlank(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}
