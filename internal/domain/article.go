package domain

import (
	"fmt"
	"strings"
	"time"
)

// Article is one syndicated item tracked through the digest lifecycle.
// URL is the identity: two fetches yielding the same URL are the same Article.
type Article struct {
	ID                 string
	URL                string
	Title              string
	SourceSummary      string
	FeedCategory       string
	PublishedAt        *time.Time
	Analysis           *Analysis
	IncludedInDigestOn *time.Time
	CreatedAt          time.Time
}

// Analyzed reports whether the article carries a persisted analysis.
func (a Article) Analyzed() bool {
	return a.Analysis != nil
}

// Delivered reports whether the article already went out in a digest.
func (a Article) Delivered() bool {
	return a.IncludedInDigestOn != nil
}

// Score returns the importance score, or 0 for unanalyzed articles.
func (a Article) Score() int {
	if a.Analysis == nil {
		return 0
	}
	return a.Analysis.ImportanceScore
}

// Analysis is the structured judgment produced by the completion backend.
type Analysis struct {
	Summary         string
	Category        Category
	ImportanceScore int
	KeyEntities     []string
	DataPoints      []string
}

const (
	MinImportance = 1
	MaxImportance = 10
)

// Validate rejects partially populated analyses so they never reach storage.
func (a Analysis) Validate() error {
	if strings.TrimSpace(a.Summary) == "" {
		return fmt.Errorf("analysis summary is empty")
	}
	if !a.Category.Valid() {
		return fmt.Errorf("unknown analysis category %q", a.Category)
	}
	if a.ImportanceScore < MinImportance || a.ImportanceScore > MaxImportance {
		return fmt.Errorf("importance score %d outside %d-%d", a.ImportanceScore, MinImportance, MaxImportance)
	}
	if a.KeyEntities == nil || a.DataPoints == nil {
		return fmt.Errorf("analysis lists must be present")
	}
	return nil
}

// Category enumerates the topical buckets an analysis may assign.
type Category string

const (
	CategoryEurope        Category = "Europe"
	CategoryInternational Category = "International"
	CategoryMarkets       Category = "Markets"
	CategoryEconomy       Category = "Economy"
	CategoryBusiness      Category = "Business"
	CategoryPolitics      Category = "Politics"
	CategoryTechnology    Category = "Technology"
	CategoryScience       Category = "Science"
	CategoryOther         Category = "Other"
)

var categories = []Category{
	CategoryEurope,
	CategoryInternational,
	CategoryMarkets,
	CategoryEconomy,
	CategoryBusiness,
	CategoryPolitics,
	CategoryTechnology,
	CategoryScience,
	CategoryOther,
}

// Categories lists the accepted categories in prompt order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// ParseCategory matches case-insensitively and returns the canonical spelling.
func ParseCategory(value string) (Category, bool) {
	value = strings.TrimSpace(value)
	for _, c := range categories {
		if strings.EqualFold(string(c), value) {
			return c, true
		}
	}
	return "", false
}

// Valid reports whether c is one of the canonical categories.
func (c Category) Valid() bool {
	for _, known := range categories {
		if c == known {
			return true
		}
	}
	return false
}

// DateRange bounds a digest run, both ends inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the window ending at now and reaching back the given days.
func LastDays(now time.Time, days int) DateRange {
	return DateRange{Start: now.AddDate(0, 0, -days), End: now}
}

// Contains reports whether t falls inside the inclusive range.
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Label renders the human form used in prompts, banners and subjects.
func (r DateRange) Label() string {
	return fmt.Sprintf("%s - %s", r.Start.Format("Jan 02"), r.End.Format("Jan 02, 2006"))
}

// DeliveryDate truncates t to the calendar day stamped on delivered articles.
func DeliveryDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Stats summarizes store contents.
type Stats struct {
	Total           int
	Analyzed        int
	Delivered       int
	PendingAnalysis int
}
