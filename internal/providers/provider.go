package providers

import (
	"context"
	"strconv"
	"strings"

	"realestate/internal/endpoint"
	"realestate/internal/model"
	"realestate/internal/rawtree"
)

// Page is one decoded upstream response.
type Page struct {
	Month  model.Month
	Number int
	// TotalCount is the upstream row total, or -1 when not reported.
	TotalCount int
	Root       rawtree.Node
	Rows       []rawtree.Node
}

// Fetcher retrieves every page of one logical query.
type Fetcher interface {
	FetchAll(ctx context.Context, desc endpoint.Descriptor, req model.QueryRequest) ([]Page, error)
}

// ExtractRows returns the rows found at the first items path that exists.
// A missing or empty items node yields no rows. Rows that are not mappings
// are returned as they are so the normalizer can count them as dropped.
func ExtractRows(root rawtree.Node, paths [][]string) []rawtree.Node {
	for _, path := range paths {
		node, ok := root.Lookup(path...)
		if !ok {
			continue
		}
		return node.List()
	}
	return nil
}

// TotalCount reads the first total-count path that holds an integer.
func TotalCount(root rawtree.Node, paths [][]string) (int, bool) {
	for _, path := range paths {
		node, ok := root.Lookup(path...)
		if !ok {
			continue
		}
		text, ok := node.Text()
		if !ok {
			continue
		}
		if value, err := strconv.Atoi(strings.ReplaceAll(text, ",", "")); err == nil {
			return value, true
		}
	}
	return 0, false
}

// FirstText returns the first non-blank scalar found along paths.
func FirstText(root rawtree.Node, paths [][]string) (string, bool) {
	for _, path := range paths {
		node, ok := root.Lookup(path...)
		if !ok {
			continue
		}
		if text, ok := node.Text(); ok {
			return text, true
		}
	}
	return "", false
}
