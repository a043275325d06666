package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-quest/internal/common"
	"github.com/Veraticus/spice-quest/internal/model"
	"github.com/Veraticus/spice-quest/internal/service"
)

const dateLayout = "2006-01-02"

func parseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimPrefix(strings.TrimSpace(s), "$"))
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return amount, nil
}

// parseDate parses a YYYY-MM-DD date. An empty string yields the zero time.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	date, err := time.ParseInLocation(dateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want %s): %w", s, dateLayout, err)
	}
	return date, nil
}

func parseTransactionType(s string) (model.TransactionType, error) {
	typ := model.TransactionType(strings.ToUpper(s))
	if !typ.IsValid() {
		return "", fmt.Errorf("invalid type %q (want income or expense)", s)
	}
	return typ, nil
}

// resolveCategory finds one of the categories visible to user by name,
// ignoring case. An empty name means uncategorized.
func resolveCategory(ctx context.Context, store service.Storage, user int64, name string) (*int64, error) {
	if name == "" {
		return nil, nil
	}
	categories, err := store.GetCategories(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			id := c.ID
			return &id, nil
		}
	}
	return nil, fmt.Errorf("category %q: %w", name, common.ErrNotFound)
}
