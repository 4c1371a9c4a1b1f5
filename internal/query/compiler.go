package query

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/restforge/restforge/internal/schema"
)

// CompileError marks a request whose query string could not be resolved
// against the model catalog. The route layer surfaces it as a 400-class
// response before any store access happens.
type CompileError struct {
	Reason string
}

// Error implements the error interface.
func (e *CompileError) Error() string { return e.Reason }

func compileErrorf(format string, a ...interface{}) *CompileError {
	return &CompileError{Reason: fmt.Sprintf(format, a...)}
}

// Reserved query-string keys that are never treated as filter expressions.
var reservedKeys = map[string]bool{
	"fields":         true,
	"join":           true,
	"groupby":        true,
	"order_by":       true,
	"page":           true,
	"limit":          true,
	"cascade_delete": true,
}

// Options controls compiler behavior.
type Options struct {
	// Strict rejects unknown operators, unknown aggregate functions and
	// unresolved sort keys instead of silently skipping them. The lenient
	// default mirrors the observable behavior of the original system.
	Strict bool

	// DefaultLimit is the page size used when the request carries none.
	DefaultLimit int

	// MaxLimit caps the requested page size.
	MaxLimit int
}

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Compiler translates query-string arguments into Plans for one registry.
type Compiler struct {
	registry *schema.Registry
	opts     Options
}

// NewCompiler creates a compiler over the given (validated) registry.
func NewCompiler(registry *schema.Registry, opts Options) *Compiler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = defaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = maxLimit
	}
	return &Compiler{registry: registry, opts: opts}
}

// Compile builds a Plan from the flat argument mapping. Every column
// reference in the returned plan resolves against the target model or one of
// its joined models; an unresolvable reference fails compilation and the
// request never reaches the store.
func (c *Compiler) Compile(model *schema.Model, args url.Values) (*Plan, error) {
	plan := &Plan{Model: model}

	if err := c.resolveJoins(plan, args.Get("join")); err != nil {
		return nil, err
	}
	sc := newScope(plan)

	if err := c.resolveFields(plan, sc, args.Get("fields")); err != nil {
		return nil, err
	}
	if err := c.resolveFilters(plan, sc, args); err != nil {
		return nil, err
	}
	if err := c.resolveGroupBy(plan, sc, args.Get("groupby")); err != nil {
		return nil, err
	}
	if err := c.resolveAggregates(plan, sc, args); err != nil {
		return nil, err
	}
	if err := c.resolveSort(plan, sc, args.Get("order_by")); err != nil {
		return nil, err
	}
	c.resolvePagination(plan, args)

	return plan, nil
}

// resolveJoins maps join names to relationships declared on the target model.
func (c *Compiler) resolveJoins(plan *Plan, joinArg string) error {
	if joinArg == "" {
		return nil
	}
	for _, name := range splitList(joinArg) {
		rel, ok := plan.Model.Relationship(name)
		if !ok {
			return compileErrorf("invalid join model: %s", name)
		}
		target, ok := c.registry.Get(rel.Target)
		if !ok {
			return compileErrorf("invalid join model: %s", name)
		}
		plan.Joins = append(plan.Joins, Join{Rel: rel, Target: target})
	}
	return nil
}

func (c *Compiler) resolveFields(plan *Plan, sc *scope, fieldsArg string) error {
	if fieldsArg == "" {
		return nil
	}
	for _, token := range splitList(fieldsArg) {
		ref, err := sc.resolve(token)
		if err != nil {
			return err
		}
		plan.Fields = append(plan.Fields, ref)
	}
	return nil
}

// resolveFilters classifies every non-reserved key. Keys are processed in
// sorted order so that plan construction is stable for identical requests.
func (c *Compiler) resolveFilters(plan *Plan, sc *scope, args url.Values) error {
	keys := make([]string, 0, len(args))
	for k := range args {
		if !reservedKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := args.Get(key)

		if strings.HasPrefix(key, "[") && strings.HasSuffix(key, "]") {
			for _, member := range splitList(key[1 : len(key)-1]) {
				cond, err := c.buildFilter(sc, member, value)
				if err != nil {
					return err
				}
				if cond != nil {
					plan.OrGroup = append(plan.OrGroup, cond)
				}
			}
			continue
		}

		name, suffix, ok := splitFilterKey(key)
		if !ok {
			continue
		}
		if _, isAgg := aggregateFuncs[suffix]; isAgg {
			continue // handled by resolveAggregates
		}
		if _, known := parseOperator(suffix); !known {
			if c.opts.Strict {
				return compileErrorf("unknown filter operator: %s", suffix)
			}
			continue
		}
		cond, err := c.buildFilter(sc, name+"__"+suffix, value)
		if err != nil {
			return err
		}
		if cond != nil {
			plan.Conditions = append(plan.Conditions, cond)
		}
	}
	return nil
}

// buildFilter resolves one `field__op` key against the scope and coerces the
// raw value to the column's native type. A nil condition (with nil error)
// means the operator was unknown and dropped.
func (c *Compiler) buildFilter(sc *scope, key, raw string) (*Condition, error) {
	name, suffix, ok := splitFilterKey(key)
	if !ok {
		return nil, compileErrorf("invalid filter key: %s", key)
	}

	op, known := parseOperator(suffix)
	if !known {
		if c.opts.Strict {
			return nil, compileErrorf("unknown filter operator: %s", suffix)
		}
		return nil, nil
	}

	ref, err := sc.resolve(name)
	if err != nil {
		return nil, err
	}

	var value interface{}
	switch op {
	case OpIn, OpNotIn:
		parts := strings.Split(raw, ",")
		values := make([]interface{}, 0, len(parts))
		for _, p := range parts {
			v, err := coerceValue(ref.Column, p)
			if err != nil {
				return nil, err
			}
			values = append(values, v)
		}
		value = values
	case OpLike, OpILike:
		value = "%" + raw + "%"
	default:
		value, err = coerceValue(ref.Column, raw)
		if err != nil {
			return nil, err
		}
	}

	return &Condition{Ref: ref, Operator: op, Value: value}, nil
}

func (c *Compiler) resolveGroupBy(plan *Plan, sc *scope, groupArg string) error {
	if groupArg == "" {
		return nil
	}
	for _, token := range splitList(groupArg) {
		ref, err := sc.resolve(token)
		if err != nil {
			return err
		}
		plan.GroupBy = append(plan.GroupBy, ref)
	}
	return nil
}

// resolveAggregates collects `field__func` and `field|label__func` keys.
// Unknown function names never reach here; they fall out of key
// classification, preserving the lenient drop behavior.
func (c *Compiler) resolveAggregates(plan *Plan, sc *scope, args url.Values) error {
	keys := make([]string, 0, len(args))
	for k := range args {
		if !reservedKeys[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		name, suffix, ok := splitFilterKey(key)
		if !ok {
			continue
		}
		fn, isAgg := aggregateFuncs[suffix]
		if !isAgg {
			continue
		}

		label := ""
		if idx := strings.Index(name, "|"); idx >= 0 {
			label = name[idx+1:]
			name = name[:idx]
		}

		ref, err := sc.resolve(name)
		if err != nil {
			return err
		}
		plan.Aggregates = append(plan.Aggregates, Aggregate{Func: fn, Ref: ref, Label: label})
	}
	return nil
}

func (c *Compiler) resolveSort(plan *Plan, sc *scope, sortArg string) error {
	if sortArg == "" {
		return nil
	}
	for _, token := range splitList(sortArg) {
		descending := strings.HasPrefix(token, "-")
		token = strings.TrimPrefix(token, "-")

		ref, err := sc.resolve(token)
		if err != nil {
			if c.opts.Strict {
				return err
			}
			continue // unresolved sort keys are skipped
		}
		plan.Sort = append(plan.Sort, SortKey{Ref: ref, Descending: descending})
	}
	return nil
}

func (c *Compiler) resolvePagination(plan *Plan, args url.Values) {
	plan.Page = 0
	plan.Limit = c.opts.DefaultLimit

	if raw := args.Get("page"); raw != "" {
		if page, err := strconv.Atoi(raw); err == nil && page >= 0 {
			plan.Page = page
		}
	}
	if raw := args.Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			plan.Limit = limit
		}
	}
	if plan.Limit > c.opts.MaxLimit {
		plan.Limit = c.opts.MaxLimit
	}
}

// scope is the unified column catalog of a plan: the target model plus every
// joined model, resolvable by model name or table name.
type scope struct {
	models []*schema.Model
}

func newScope(plan *Plan) *scope {
	models := make([]*schema.Model, 0, len(plan.Joins)+1)
	models = append(models, plan.Model)
	for _, j := range plan.Joins {
		models = append(models, j.Target)
	}
	return &scope{models: models}
}

// resolve maps a bare or table-qualified column token to a concrete column.
// Bare names search the target model first, then joins in request order.
func (s *scope) resolve(token string) (ColumnRef, error) {
	if idx := strings.Index(token, "."); idx >= 0 {
		qualifier, name := token[:idx], token[idx+1:]
		m := s.lookup(qualifier)
		if m == nil {
			return ColumnRef{}, compileErrorf("invalid table name: %s", qualifier)
		}
		col, ok := m.Column(name)
		if !ok {
			return ColumnRef{}, compileErrorf("invalid column name: %s.%s", qualifier, name)
		}
		return ColumnRef{Model: m, Column: col}, nil
	}

	for _, m := range s.models {
		if col, ok := m.Column(token); ok {
			return ColumnRef{Model: m, Column: col}, nil
		}
	}
	return ColumnRef{}, compileErrorf("invalid column name: %s", token)
}

func (s *scope) lookup(qualifier string) *schema.Model {
	for _, m := range s.models {
		if m.Name == qualifier || m.Table == qualifier {
			return m
		}
	}
	return nil
}

// splitFilterKey splits `name__suffix`, rejecting keys without the separator.
func splitFilterKey(key string) (name, suffix string, ok bool) {
	idx := strings.LastIndex(key, "__")
	if idx <= 0 || idx+2 >= len(key) {
		return "", "", false
	}
	return key[:idx], key[idx+2:], true
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Boolean spellings accepted by value coercion.
var (
	truthyValues = map[string]bool{"true": true, "1": true, "yes": true, "y": true}
	falsyValues  = map[string]bool{"false": true, "0": true, "no": true, "n": true}
)

// coerceValue converts a raw query-string value to the column's native type.
// Numeric and temporal parse failures pass the raw string through; invalid
// booleans are rejected.
func coerceValue(col *schema.Column, raw string) (interface{}, error) {
	if col.Computed {
		return raw, nil
	}

	switch col.Type {
	case schema.TypeInteger:
		if n, err := strconv.Atoi(raw); err == nil {
			return n, nil
		}
		return raw, nil
	case schema.TypeFloat:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
		return raw, nil
	case schema.TypeDate:
		if t, err := time.Parse("2006-01-02", raw); err == nil {
			return t, nil
		}
		return raw, nil
	case schema.TypeDateTime:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02 15:04:05", raw); err == nil {
			return t, nil
		}
		return raw, nil
	case schema.TypeTime:
		if t, err := time.Parse("15:04:05", raw); err == nil {
			return t, nil
		}
		return raw, nil
	case schema.TypeBoolean:
		lower := strings.ToLower(raw)
		if truthyValues[lower] {
			return true, nil
		}
		if falsyValues[lower] {
			return false, nil
		}
		return nil, compileErrorf("invalid boolean value: %s", raw)
	default:
		return raw, nil
	}
}
