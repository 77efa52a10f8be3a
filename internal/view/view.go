// Package view derives the rendered product and category lists from cached
// entities. Nothing here holds state between calls.
package view

import (
	"sort"
	"strings"

	"inventory-tracker/internal/models"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// AllCategories is the category filter value that matches every product
const AllCategories = "all"

// Filter is the UI filter state
type Filter struct {
	Query      string `form:"q" json:"q"`
	CategoryID string `form:"category" json:"category"`
}

// Row is a product with its resolved category name
type Row struct {
	models.Product
	CategoryName string `json:"category_name,omitempty"`
}

// Option is an entry of the category selector
type Option struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Sorter orders names by the collation of a locale
type Sorter struct {
	tag      language.Tag
	allLabel string
}

// NewSorter parses a BCP 47 locale. Unknown locales fall back to
// language.Und (root collation).
func NewSorter(locale, allLabel string) *Sorter {
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.Und
	}
	if allLabel == "" {
		allLabel = "All categories"
	}
	return &Sorter{tag: tag, allLabel: allLabel}
}

// collate.Collator is not safe for concurrent use, so each call gets its own
func (s *Sorter) collator() *collate.Collator {
	return collate.New(s.tag)
}

// Compare orders two names by the locale collation
func (s *Sorter) Compare(a, b string) int {
	return s.collator().CompareString(a, b)
}

// Matches reports whether p passes the filter
func Matches(p *models.Product, f Filter) bool {
	q := strings.ToLower(f.Query)
	matchesSearch := strings.Contains(strings.ToLower(p.Name), q) ||
		strings.Contains(strings.ToLower(p.SKU), q)

	matchesCategory := f.CategoryID == "" || f.CategoryID == AllCategories ||
		(p.CategoryID != nil && *p.CategoryID == f.CategoryID)

	return matchesSearch && matchesCategory
}

// FilterProducts keeps the products matching f, in input order
func FilterProducts(products []models.Product, f Filter) []models.Product {
	out := make([]models.Product, 0, len(products))
	for i := range products {
		if Matches(&products[i], f) {
			out = append(out, products[i])
		}
	}
	return out
}

// Rows resolves category names without reordering
func Rows(products []models.Product, categories []models.Category) []Row {
	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}

	rows := make([]Row, len(products))
	for i, p := range products {
		rows[i] = Row{Product: p}
		if p.CategoryID != nil {
			rows[i].CategoryName = names[*p.CategoryID]
		}
	}
	return rows
}

// ProductList filters the products and sorts them by category name, then
// product name. Products without a resolvable category sort last.
func (s *Sorter) ProductList(products []models.Product, categories []models.Category, f Filter) []Row {
	rows := Rows(FilterProducts(products, f), categories)
	col := s.collator()

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if (a.CategoryName == "") != (b.CategoryName == "") {
			return b.CategoryName == ""
		}
		if c := col.CompareString(a.CategoryName, b.CategoryName); c != 0 {
			return c < 0
		}
		return col.CompareString(a.Name, b.Name) < 0
	})
	return rows
}

// CategoryOptions returns the "all" sentinel followed by categories in
// collation order
func (s *Sorter) CategoryOptions(categories []models.Category) []Option {
	sorted := make([]models.Category, len(categories))
	copy(sorted, categories)
	col := s.collator()
	sort.SliceStable(sorted, func(i, j int) bool {
		return col.CompareString(sorted[i].Name, sorted[j].Name) < 0
	})

	options := make([]Option, 0, len(sorted)+1)
	options = append(options, Option{ID: AllCategories, Name: s.allLabel})
	for _, c := range sorted {
		options = append(options, Option{ID: c.ID, Name: c.Name})
	}
	return options
}
