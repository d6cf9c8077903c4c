package domain

// Operator names a field comparison for collection queries. Operators
// use the comparison spelling callers write at the query site; adapters
// translate them to whatever the backing database expects.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLessThan     Operator = "<"
	OpLessOrEqual  Operator = "<="
	OpGreaterThan  Operator = ">"
	OpGreaterEqual Operator = ">="
	OpIn           Operator = "in"
	OpContains     Operator = "contains"
)

// Valid reports whether the operator is one the adapters understand.
func (o Operator) Valid() bool {
	switch o {
	case OpEqual, OpNotEqual, OpLessThan, OpLessOrEqual,
		OpGreaterThan, OpGreaterEqual, OpIn, OpContains:
		return true
	}
	return false
}

// Filter is a single field/operator/value predicate.
type Filter struct {
	Value any
	Field string
	Op    Operator
}

// ChangeKind classifies a realtime change event.
type ChangeKind int

const (
	ChangeUnknown ChangeKind = iota
	ChangeAdded
	ChangeUpdated
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeUpdated:
		return "updated"
	case ChangeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// RawDocument is a backend-encoded document that can be decoded into a
// caller-supplied type at the serialisation boundary.
type RawDocument interface {
	Decode(out any) error
}

// Change is one realtime event from a collection's change feed. Doc is
// nil for removals.
type Change struct {
	Doc  RawDocument
	ID   string
	Kind ChangeKind
}
