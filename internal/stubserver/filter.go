package stubserver

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

// condition is one parsed filter: column op value.
type condition struct {
	column string
	op     string // eq, neq, lt, gt, in
	value  string
	values []string // for in
}

// filterSet is every condition on a request; all must hold (the or key
// expands to one condition group where any branch may hold).
type filterSet struct {
	conds []condition
	ors   [][]filterSet // each element: branches, one must match
}

func parseQuery(q url.Values) (filters filterSet, order string, limit, offset int, sel string) {
	limit, offset = -1, 0
	for key, vals := range q {
		for _, val := range vals {
			switch key {
			case "select":
				sel = val
			case "order":
				order = val
			case "limit":
				limit, _ = strconv.Atoi(val)
			case "offset":
				offset, _ = strconv.Atoi(val)
			case "or":
				filters.ors = append(filters.ors, parseOr(val))
			default:
				if c, ok := parseCondition(key, val); ok {
					filters.conds = append(filters.conds, c)
				}
			}
		}
	}
	return
}

// parseCondition parses "op.value" for a column key.
func parseCondition(column, expr string) (condition, bool) {
	op, rest, ok := strings.Cut(expr, ".")
	if !ok {
		return condition{}, false
	}
	c := condition{column: column, op: op, value: rest}
	if op == "in" {
		inner := strings.TrimSuffix(strings.TrimPrefix(rest, "("), ")")
		for _, v := range strings.Split(inner, ",") {
			c.values = append(c.values, strings.Trim(v, `"`))
		}
	}
	return c, true
}

// parseOr parses "(and(a.eq.x,b.eq.y),and(...))" or "(a.eq.x,b.eq.y)" into
// branches.
func parseOr(expr string) []filterSet {
	expr = strings.TrimSuffix(strings.TrimPrefix(expr, "("), ")")
	var branches []filterSet
	for _, part := range splitTopLevel(expr) {
		var branch filterSet
		if inner, ok := strings.CutPrefix(part, "and("); ok {
			inner = strings.TrimSuffix(inner, ")")
			for _, cond := range splitTopLevel(inner) {
				if c, ok := parseDotted(cond); ok {
					branch.conds = append(branch.conds, c)
				}
			}
		} else if c, ok := parseDotted(part); ok {
			branch.conds = append(branch.conds, c)
		}
		branches = append(branches, branch)
	}
	return branches
}

// parseDotted parses "column.op.value".
func parseDotted(expr string) (condition, bool) {
	column, rest, ok := strings.Cut(expr, ".")
	if !ok {
		return condition{}, false
	}
	return parseCondition(column, rest)
}

// splitTopLevel splits on commas that are not inside parentheses.
func splitTopLevel(expr string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range expr {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, expr[start:i])
				start = i + 1
			}
		}
	}
	if start < len(expr) {
		out = append(out, expr[start:])
	}
	return out
}

func (f filterSet) match(row Row) bool {
	for _, c := range f.conds {
		if !c.match(row) {
			return false
		}
	}
	for _, branches := range f.ors {
		any := false
		for _, b := range branches {
			if b.match(row) {
				any = true
				break
			}
		}
		if !any {
			return false
		}
	}
	return true
}

func (c condition) match(row Row) bool {
	got := fmt.Sprintf("%v", row[c.column])
	switch c.op {
	case "eq":
		return got == c.value
	case "neq":
		return got != c.value
	case "in":
		for _, v := range c.values {
			if got == v {
				return true
			}
		}
		return false
	case "lt":
		return compareValues(got, c.value) < 0
	case "gt":
		return compareValues(got, c.value) > 0
	}
	return false
}

// compareValues orders timestamps as times when both sides parse, otherwise
// lexically.
func compareValues(a, b string) int {
	ta, errA := time.Parse(time.RFC3339Nano, a)
	tb, errB := time.Parse(time.RFC3339Nano, b)
	if errA == nil && errB == nil {
		switch {
		case ta.Before(tb):
			return -1
		case ta.After(tb):
			return 1
		}
		return 0
	}
	return strings.Compare(a, b)
}

func applyOrder(rows []Row, order string) {
	if order == "" {
		return
	}
	column, dir, _ := strings.Cut(order, ".")
	desc := dir == "desc"
	sort.SliceStable(rows, func(i, j int) bool {
		a := fmt.Sprintf("%v", rows[i][column])
		b := fmt.Sprintf("%v", rows[j][column])
		if desc {
			return compareValues(a, b) > 0
		}
		return compareValues(a, b) < 0
	})
}

func applyPage(rows []Row, limit, offset int) []Row {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit >= 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
