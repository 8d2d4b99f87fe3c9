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

// OrderByClause renders `orderings` as an SQL ORDER BY list, keeping only the fields in `allowed`
// (API field name -> column name). `fallback` is used when nothing is left.
func OrderByClause(orderings []DBOrdering, allowed map[string]string, fallback DBOrdering) string {
	parts := make([]string, 0, len(orderings))
	for _, ord := range orderings {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return fallback.String()
	}
	return strings.Join(parts, ", ")
}
