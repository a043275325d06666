// Package classification assigns categories to imported transactions from
// description patterns.
package classification

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Veraticus/spice-quest/internal/model"
)

// Pattern maps descriptions matching Regex to the category named Category.
// A pattern only applies to transactions of its Type.
type Pattern struct {
	Name     string
	Category string
	Type     model.TransactionType
	Regex    string
	Priority int // Higher priority patterns are checked first
}

type compiledPattern struct {
	regex *regexp.Regexp
	Pattern
}

// PatternDetector matches transaction descriptions against patterns.
type PatternDetector struct {
	patterns []compiledPattern
	mu       sync.RWMutex
}

// NewPatternDetector creates a detector with the given patterns.
func NewPatternDetector(patterns []Pattern) (*PatternDetector, error) {
	pd := &PatternDetector{}
	if err := pd.UpdatePatterns(patterns); err != nil {
		return nil, err
	}
	return pd, nil
}

// Match represents a pattern match result.
type Match struct {
	PatternName string
	Category    string
}

// Classify returns the highest priority pattern matching txn, or nil.
func (pd *PatternDetector) Classify(txn model.Transaction) *Match {
	pd.mu.RLock()
	defer pd.mu.RUnlock()

	for _, p := range pd.patterns {
		if p.Type != txn.Type {
			continue
		}
		if p.regex.MatchString(txn.Description) {
			return &Match{PatternName: p.Name, Category: p.Category}
		}
	}
	return nil
}

// UpdatePatterns replaces the detector's patterns.
func (pd *PatternDetector) UpdatePatterns(patterns []Pattern) error {
	compiled := make([]compiledPattern, 0, len(patterns))

	for _, p := range patterns {
		regexStr := p.Regex
		if !strings.HasPrefix(regexStr, "(?i)") {
			regexStr = "(?i)" + regexStr
		}

		regex, err := regexp.Compile(regexStr)
		if err != nil {
			return fmt.Errorf("failed to compile pattern %s: %w", p.Name, err)
		}
		compiled = append(compiled, compiledPattern{Pattern: p, regex: regex})
	}

	sort.SliceStable(compiled, func(i, j int) bool {
		return compiled[i].Priority > compiled[j].Priority
	})

	pd.mu.Lock()
	pd.patterns = compiled
	pd.mu.Unlock()

	return nil
}

// PatternCount returns the number of loaded patterns.
func (pd *PatternDetector) PatternCount() int {
	pd.mu.RLock()
	defer pd.mu.RUnlock()
	return len(pd.patterns)
}

// CategoryLister lists the categories a user may use.
type CategoryLister interface {
	GetCategories(ctx context.Context, userID int64) ([]model.Category, error)
}

// Categorizer fills in the category of uncategorized transactions.
type Categorizer struct {
	detector   *PatternDetector
	categories CategoryLister
}

// NewCategorizer creates a categorizer resolving matches against the
// categories visible to each transaction's owner.
func NewCategorizer(detector *PatternDetector, categories CategoryLister) *Categorizer {
	return &Categorizer{detector: detector, categories: categories}
}

// Categorize sets txn.CategoryID when a pattern matches and the named
// category exists for the user with the transaction's type. Transactions
// that already have a category are left alone.
func (c *Categorizer) Categorize(ctx context.Context, txn *model.Transaction) error {
	if txn.CategoryID != nil {
		return nil
	}
	match := c.detector.Classify(*txn)
	if match == nil {
		return nil
	}

	categories, err := c.categories.GetCategories(ctx, txn.UserID)
	if err != nil {
		return fmt.Errorf("failed to load categories: %w", err)
	}
	for _, category := range categories {
		if strings.EqualFold(category.Name, match.Category) && string(category.Type) == string(txn.Type) {
			id := category.ID
			txn.CategoryID = &id
			return nil
		}
	}

	slog.Debug("Matched category is not available",
		"pattern", match.PatternName,
		"category", match.Category,
		"user_id", txn.UserID)
	return nil
}
