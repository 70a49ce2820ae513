package domain

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// titleCollator orders titles the way a locale-aware compare would, rather
// than by raw byte order.
var titleCollator = collate.New(language.Und, collate.Loose)

// ApplyFilters returns the ordered subset of products matching f. Every
// criterion is conjunctive: a product survives only when it passes all of
// them. The input slice is left untouched.
func ApplyFilters(products []Product, f ProductFilters) []Product {
	result := make([]Product, 0, len(products))
	search := strings.ToLower(f.Search)
	for _, p := range products {
		if search != "" && !matchesSearch(p, search) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.MinPrice != nil && p.Price < *f.MinPrice {
			continue
		}
		if f.MaxPrice != nil && p.Price > *f.MaxPrice {
			continue
		}
		if f.MinRating != nil && *f.MinRating > 0 && p.Rating < *f.MinRating {
			continue
		}
		result = append(result, p)
	}
	sortProducts(result, f.SortBy)
	return result
}

func matchesSearch(p Product, lowered string) bool {
	return strings.Contains(strings.ToLower(p.Title), lowered) ||
		strings.Contains(strings.ToLower(p.Description), lowered) ||
		strings.Contains(strings.ToLower(p.Brand), lowered)
}

func sortProducts(products []Product, mode SortMode) {
	switch mode {
	case SortByPriceAsc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price < products[j].Price
		})
	case SortByPriceDesc:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Price > products[j].Price
		})
	case SortByRating:
		sort.SliceStable(products, func(i, j int) bool {
			return products[i].Rating > products[j].Rating
		})
	case SortByName:
		sort.SliceStable(products, func(i, j int) bool {
			return titleCollator.CompareString(products[i].Title, products[j].Title) < 0
		})
	}
}

// Categories derives the facet set for the category filter: the distinct,
// non-empty category values across the unfiltered product list, in first
// appearance order.
func Categories(products []Product) []string {
	seen := make(map[string]struct{}, len(products))
	out := make([]string, 0, len(products))
	for _, p := range products {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}
