package store

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"realestate/internal/model"
)

var ErrNotFound = errors.New("store: not found")

// RegionIndex is the lookup table behind region resolution. Name arguments
// are expected in NormalizeName form.
type RegionIndex interface {
	ReplaceRegions(ctx context.Context, regions []model.RegionAddressInfo) error
	RegionByCode(ctx context.Context, code string) (model.RegionCode, error)
	RegionsByName(ctx context.Context, name string) ([]model.RegionCode, error)
	RegionsByPrefix(ctx context.Context, prefix string, limit int) ([]model.RegionCode, error)
	RegionsByComponents(ctx context.Context, tokens []string) ([]model.RegionCode, error)
	CountRegions(ctx context.Context) (int, error)
	Close() error
}

// NormalizeName drops whitespace and hyphens and lower-cases the rest, so
// "서울특별시 강남구" and "서울특별시강남구" compare equal.
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NameComponents splits a full name into normalized components.
func NameComponents(fullName string) []string {
	fields := strings.Fields(fullName)
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		if normalized := NormalizeName(field); normalized != "" {
			out = append(out, normalized)
		}
	}
	return out
}
