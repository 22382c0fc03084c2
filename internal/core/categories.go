package core

import (
	"sort"
	"strings"
)

// UnknownCategoryID is assigned when a category name cannot be resolved.
const UnknownCategoryID int64 = 0

// CategoryMap is the fixed taxonomy shared with the cloud functions.
var CategoryMap = map[string]int64{
	"Accounting and legal fees":             1,
	"Bank fees":                             2,
	"Consultants and professional services": 3,
	"Depreciation":                          4,
	"Employee benefits":                     5,
	"Employee expenses":                     6,
	"Entertainment":                         7,
	"Food":                                  8,
	"Gifts":                                 9,
	"Health":                                10,
	"Insurance":                             11,
	"Interest":                              12,
	"Learning":                              13,
	"Licensing fees":                        14,
	"Marketing":                             15,
	"Membership fees":                       16,
	"Office supplies":                       17,
	"Payroll":                               18,
	"Repairs":                               19,
	"Rent":                                  20,
	"Rent or mortgage payments":             21,
	"Software":                              22,
	"Tax":                                   23,
	"Travel":                                24,
	"Utilities":                             25,
}

var (
	lowerCategoryIndex = func() map[string]int64 {
		m := make(map[string]int64, len(CategoryMap))
		for name, id := range CategoryMap {
			m[strings.ToLower(name)] = id
		}
		return m
	}()

	categoryNames = func() map[int64]string {
		m := make(map[int64]string, len(CategoryMap))
		for name, id := range CategoryMap {
			m[id] = name
		}
		return m
	}()
)

// LookupCategoryID resolves a free-text category name.
// Surrounding whitespace and case are ignored; no match yields UnknownCategoryID.
func LookupCategoryID(name string) int64 {
	if id, ok := lowerCategoryIndex[strings.ToLower(strings.TrimSpace(name))]; ok {
		return id
	}
	return UnknownCategoryID
}

// CategoryName is the reverse lookup. ok is false for unknown IDs.
func CategoryName(id int64) (name string, ok bool) {
	name, ok = categoryNames[id]
	return name, ok
}

// CategoryNames lists the taxonomy ordered by ID.
func CategoryNames() []string {
	ids := make([]int64, 0, len(categoryNames))
	for id := range categoryNames {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = categoryNames[id]
	}
	return out
}
