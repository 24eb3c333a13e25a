package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// OrderBy builds an ORDER BY clause from the orderings whose field is allowed.
// Unknown fields are dropped silently; fallback is used when nothing is left.
func OrderBy(orderings []DBOrdering, allowed map[string]bool, fallback DBOrdering) string {
	clauses := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		if allowed[ord.Field] {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		clauses = append(clauses, fallback.String())
	}
	return strings.Join(clauses, ", ")
}

// ParseOrdering reads a comma separated list of fields, each optionally prefixed with "-" for descending order.
func ParseOrdering(s string) []DBOrdering {
	var orderings []DBOrdering
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}
