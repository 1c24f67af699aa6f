package core

import "strings"

// Ordering is one sort key of a listing, eg. "-salary" -> {salary, false}.
type Ordering struct {
	Field     string
	Ascending bool
}

func (ord Ordering) String() string {
	if ord.Ascending {
		return ord.Field
	}
	return "-" + ord.Field
}

// ParseOrdering parses a comma separated list of fields, each optionally prefixed by "-" for descending order.
func ParseOrdering(s string) []Ordering {
	var ords []Ordering
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ords = append(ords, Ordering{Field: field, Ascending: !descending})
	}
	return ords
}
