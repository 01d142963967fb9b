// internal/segment/predicate.go
package segment

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/unclebandit/xeno-crm-backend/internal/model"
)

type Operator string

const (
	OpGT  Operator = "gt"
	OpLT  Operator = "lt"
	OpGTE Operator = "gte"
	OpLTE Operator = "lte"
	OpEQ  Operator = "eq"
)

const (
	FieldTotalSpend         = "total_spend"
	FieldVisitCount         = "visit_count"
	FieldLastVisit          = "last_visit"
	FieldDaysSinceLastVisit = "days_since_last_visit"
)

// Clause is one (field, operator, value) filter. Numeric fields use Value;
// last_visit comparisons use Time.
type Clause struct {
	Field string
	Op    Operator
	Value float64
	Time  time.Time
}

// Predicate is a conjunction of clauses. An empty predicate matches the
// entire population. Predicates are immutable once attached to a campaign.
type Predicate struct {
	Clauses []Clause
}

func (p *Predicate) Empty() bool {
	return p == nil || len(p.Clauses) == 0
}

// Parse decodes the wire format: a mapping from field name to either a
// literal value (implying eq) or a mapping of operator token to value.
// The derived days_since_last_visit field is rewritten here into an absolute
// last_visit clause; "more days ago" means an earlier timestamp, so the
// operator sense inverts (gt N -> last_visit < now - N days).
func Parse(raw json.RawMessage, now time.Time) (*Predicate, error) {
	if len(raw) == 0 {
		return &Predicate{}, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("invalid predicate: %w", err)
	}

	// Sorted for deterministic clause order (and therefore deterministic SQL).
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	p := &Predicate{}
	for _, name := range names {
		ops, err := parseValue(fields[name])
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", name, err)
		}
		for _, ov := range ops {
			clause, err := buildClause(name, ov.op, ov.raw, now)
			if err != nil {
				return nil, err
			}
			p.Clauses = append(p.Clauses, clause)
		}
	}
	return p, nil
}

type opValue struct {
	op  Operator
	raw json.RawMessage
}

func parseValue(raw json.RawMessage) ([]opValue, error) {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		// literal value implies eq
		return []opValue{{op: OpEQ, raw: raw}}, nil
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	toks := make([]string, 0, len(m))
	for tok := range m {
		toks = append(toks, tok)
	}
	sort.Strings(toks)

	out := make([]opValue, 0, len(m))
	for _, tok := range toks {
		op := Operator(tok)
		switch op {
		case OpGT, OpLT, OpGTE, OpLTE, OpEQ:
			out = append(out, opValue{op: op, raw: m[tok]})
		default:
			return nil, fmt.Errorf("unknown operator %q", tok)
		}
	}
	return out, nil
}

func buildClause(field string, op Operator, raw json.RawMessage, now time.Time) (Clause, error) {
	switch field {
	case FieldTotalSpend, FieldVisitCount:
		var v float64
		if err := json.Unmarshal(raw, &v); err != nil {
			return Clause{}, fmt.Errorf("field %q: numeric value required: %w", field, err)
		}
		return Clause{Field: field, Op: op, Value: v}, nil

	case FieldDaysSinceLastVisit:
		var days float64
		if err := json.Unmarshal(raw, &days); err != nil {
			return Clause{}, fmt.Errorf("field %q: numeric value required: %w", field, err)
		}
		threshold := now.Add(-time.Duration(days * 86400 * float64(time.Second)))
		return Clause{Field: FieldLastVisit, Op: invert(op), Time: threshold}, nil

	case FieldLastVisit:
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Clause{}, fmt.Errorf("field %q: timestamp string required: %w", field, err)
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return Clause{}, fmt.Errorf("field %q: %w", field, err)
		}
		return Clause{Field: FieldLastVisit, Op: op, Time: t}, nil

	default:
		return Clause{}, fmt.Errorf("unknown field %q", field)
	}
}

func invert(op Operator) Operator {
	switch op {
	case OpGT:
		return OpLT
	case OpGTE:
		return OpLTE
	case OpLT:
		return OpGT
	case OpLTE:
		return OpGTE
	}
	return op
}

// Match applies every clause as a conjunctive filter.
func (p *Predicate) Match(c *model.Customer) bool {
	if p == nil {
		return true
	}
	for _, cl := range p.Clauses {
		if !cl.match(c) {
			return false
		}
	}
	return true
}

func (cl Clause) match(c *model.Customer) bool {
	switch cl.Field {
	case FieldTotalSpend:
		return cmpFloat(c.TotalSpend, cl.Op, cl.Value)
	case FieldVisitCount:
		return cmpFloat(float64(c.VisitCount), cl.Op, cl.Value)
	case FieldLastVisit:
		return cmpTime(c.LastVisit, cl.Op, cl.Time)
	}
	return false
}

func cmpFloat(a float64, op Operator, b float64) bool {
	switch op {
	case OpGT:
		return a > b
	case OpLT:
		return a < b
	case OpGTE:
		return a >= b
	case OpLTE:
		return a <= b
	case OpEQ:
		return a == b
	}
	return false
}

func cmpTime(a time.Time, op Operator, b time.Time) bool {
	switch op {
	case OpGT:
		return a.After(b)
	case OpLT:
		return a.Before(b)
	case OpGTE:
		return !a.Before(b)
	case OpLTE:
		return !a.After(b)
	case OpEQ:
		return a.Equal(b)
	}
	return false
}

func sqlOp(op Operator) string {
	switch op {
	case OpGT:
		return ">"
	case OpLT:
		return "<"
	case OpGTE:
		return ">="
	case OpLTE:
		return "<="
	default:
		return "="
	}
}

// Wire renders the predicate back into the wire format so a translated
// predicate can be previewed, stored on a campaign and parsed again.
func (p *Predicate) Wire() json.RawMessage {
	fields := map[string]map[string]interface{}{}
	for _, cl := range p.Clauses {
		ops, ok := fields[cl.Field]
		if !ok {
			ops = map[string]interface{}{}
			fields[cl.Field] = ops
		}
		if cl.Field == FieldLastVisit {
			ops[string(cl.Op)] = cl.Time.Format(time.RFC3339)
		} else {
			ops[string(cl.Op)] = cl.Value
		}
	}
	raw, _ := json.Marshal(fields)
	return raw
}

// WhereSQL renders the predicate as a SQL condition with positional args
// starting at startArg. An empty predicate yields an empty condition.
func (p *Predicate) WhereSQL(startArg int) (string, []interface{}) {
	if p.Empty() {
		return "", nil
	}
	parts := make([]string, 0, len(p.Clauses))
	args := make([]interface{}, 0, len(p.Clauses))
	for i, cl := range p.Clauses {
		parts = append(parts, fmt.Sprintf("%s %s $%d", cl.Field, sqlOp(cl.Op), startArg+i))
		if cl.Field == FieldLastVisit {
			args = append(args, cl.Time)
		} else {
			args = append(args, cl.Value)
		}
	}
	return strings.Join(parts, " AND "), args
}
