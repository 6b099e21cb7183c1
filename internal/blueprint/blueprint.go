// Package blueprint holds the exam category weights and splits a full exam
// into per-category question counts.
package blueprint

import (
	"sort"
	"strconv"
	"strings"
)

// Category is one exam content area and its percentage weight.
type Category struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

// Table is an ordered list of categories. Weights are expected to sum to
// about 100 but this is not enforced.
type Table []Category

// Default returns the built-in ABIM internal medicine blueprint.
func Default() Table {
	return Table{
		{"Cardiovascular Disease", 14},
		{"Endocrinology, Diabetes, and Metabolism", 9},
		{"Gastroenterology", 9},
		{"Infectious Disease", 9},
		{"Pulmonary Disease", 9},
		{"Rheumatology and Orthopedics", 9},
		{"Hematology", 6},
		{"Nephrology and Urology", 6},
		{"Medical Oncology", 6},
		{"Neurology", 4},
		{"Psychiatry", 4},
		{"Dermatology", 3},
		{"Obstetrics and Gynecology", 3},
		{"Geriatric Syndromes", 3},
		{"Allergy and Immunology", 2},
		{"Miscellaneous", 2},
		{"Ophthalmology", 1},
		{"Otolaryngology and Dental Medicine", 1},
	}
}

// TotalWeight sums the table weights.
func (t Table) TotalWeight() float64 {
	var sum float64
	for _, c := range t {
		sum += c.Weight
	}
	return sum
}

// Share is one category's question count.
type Share struct {
	Category string
	Count    int
}

// Allocation lists per-category counts in table order.
type Allocation []Share

// Total sums the counts.
func (a Allocation) Total() int {
	n := 0
	for _, s := range a {
		n += s.Count
	}
	return n
}

// Count returns the count for a category, or 0 if absent.
func (a Allocation) Count(category string) int {
	for _, s := range a {
		if s.Category == category {
			return s.Count
		}
	}
	return 0
}

// Summary renders the allocation as "Planned allocation:" followed by one
// "name: count" line per category.
func (a Allocation) Summary() string {
	var b strings.Builder
	b.WriteString("Planned allocation:\n")
	for i, s := range a {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(s.Category)
		b.WriteString(": ")
		b.WriteString(strconv.Itoa(s.Count))
	}
	return b.String()
}

// Allocate splits total across the table. Each category first gets
// floor(total*weight/100); the remainder is handed out one at a time in
// descending weight order, ties in table order, wrapping as needed.
// The counts always sum to total for total > 0.
func Allocate(table Table, total int) Allocation {
	alloc := make(Allocation, len(table))
	if len(table) == 0 {
		return alloc
	}

	assigned := 0
	for i, c := range table {
		n := 0
		if total > 0 && c.Weight > 0 {
			n = int(float64(total) * c.Weight / 100)
		}
		alloc[i] = Share{Category: c.Name, Count: n}
		assigned += n
	}
	if total <= 0 {
		return alloc
	}

	// Weights over 100 can overshoot; trim from the lightest categories.
	if assigned > total {
		order := byWeight(table)
		for i := len(order) - 1; assigned > total; i-- {
			if i < 0 {
				i = len(order) - 1
			}
			idx := order[i]
			if alloc[idx].Count > 0 {
				alloc[idx].Count--
				assigned--
			}
		}
		return alloc
	}

	remainder := total - assigned
	order := byWeight(table)
	for i := 0; remainder > 0; i++ {
		alloc[order[i%len(order)]].Count++
		remainder--
	}
	return alloc
}

// byWeight returns table indexes sorted by descending weight, stable.
func byWeight(table Table) []int {
	order := make([]int, len(table))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return table[order[a]].Weight > table[order[b]].Weight
	})
	return order
}
