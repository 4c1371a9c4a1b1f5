// Package query compiles flat query-string arguments into a validated Plan
// and renders plans as parameterized SQL.
package query

import (
	"fmt"
	"strings"

	"github.com/restforge/restforge/internal/schema"
)

// Operator represents a filter comparison operator from the query grammar.
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpLessThan
	OpLessThanOrEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpIn
	OpNotIn
	OpLike
	OpILike
)

// String returns the SQL representation of the operator.
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpIn:
		return "IN"
	case OpNotIn:
		return "NOT IN"
	case OpLike:
		return "LIKE"
	case OpILike:
		return "ILIKE"
	default:
		return "UNKNOWN"
	}
}

// parseOperator maps a grammar suffix (eq, ne, lt, ...) to an Operator.
// The second return value is false for unknown suffixes.
func parseOperator(s string) (Operator, bool) {
	switch s {
	case "eq":
		return OpEqual, true
	case "ne", "neq":
		return OpNotEqual, true
	case "lt":
		return OpLessThan, true
	case "le":
		return OpLessThanOrEqual, true
	case "gt":
		return OpGreaterThan, true
	case "ge":
		return OpGreaterThanOrEqual, true
	case "in":
		return OpIn, true
	case "nin":
		return OpNotIn, true
	case "like":
		return OpLike, true
	case "ilike":
		return OpILike, true
	default:
		return 0, false
	}
}

// aggregateFuncs is the fixed set of supported aggregate functions.
var aggregateFuncs = map[string]string{
	"sum":   "SUM",
	"count": "COUNT",
	"avg":   "AVG",
	"min":   "MIN",
	"max":   "MAX",
}

// ColumnRef is a column resolved against a concrete model in the plan scope.
type ColumnRef struct {
	Model  *schema.Model
	Column *schema.Column
}

// SQL returns the qualified table.column identifier.
func (r ColumnRef) SQL() string {
	return r.Model.Table + "." + r.Column.Name
}

// Condition is one filter predicate of a plan.
type Condition struct {
	Ref      ColumnRef
	Operator Operator
	Value    interface{}
}

// toSQL renders the condition with positional placeholders, appending bound
// values to args.
func (c *Condition) toSQL(paramCounter *int, args *[]interface{}) (string, error) {
	field := c.Ref.SQL()

	switch c.Operator {
	case OpIn, OpNotIn:
		values, ok := c.Value.([]interface{})
		if !ok {
			return "", fmt.Errorf("%s operator requires a value list", c.Operator)
		}
		if len(values) == 0 {
			// IN () is invalid SQL; an empty list can never match.
			if c.Operator == OpIn {
				return "FALSE", nil
			}
			return "TRUE", nil
		}
		placeholders := make([]string, len(values))
		for i, v := range values {
			*args = append(*args, v)
			placeholders[i] = fmt.Sprintf("$%d", *paramCounter)
			*paramCounter++
		}
		return fmt.Sprintf("%s %s (%s)", field, c.Operator, strings.Join(placeholders, ", ")), nil

	default:
		*args = append(*args, c.Value)
		sql := fmt.Sprintf("%s %s $%d", field, c.Operator, *paramCounter)
		*paramCounter++
		return sql, nil
	}
}
