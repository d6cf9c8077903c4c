package mongodb

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/tidefall/docstore/internal/core/domain"
)

// buildSelector translates a domain filter into a driver selector.
//
// OpContains relies on MongoDB's array-membership equality: a direct
// equality match on an array field matches documents whose array holds
// the value. OpIn requires a slice value and maps to $in.
func buildSelector(filter domain.Filter) (bson.D, error) {
	if strings.TrimSpace(filter.Field) == "" {
		return nil, fmt.Errorf("%w: empty field", domain.ErrInvalidFilter)
	}

	if !filter.Op.Valid() {
		return nil, fmt.Errorf("%w: unknown operator %q", domain.ErrInvalidFilter, filter.Op)
	}

	operator, err := mongoOperator(filter.Op)
	if err != nil {
		return nil, err
	}

	return bson.D{{
		Key:   filter.Field,
		Value: bson.D{{Key: operator, Value: filter.Value}},
	}}, nil
}

func mongoOperator(op domain.Operator) (string, error) {
	switch op {
	case domain.OpEqual, domain.OpContains:
		return "$eq", nil
	case domain.OpNotEqual:
		return "$ne", nil
	case domain.OpLessThan:
		return "$lt", nil
	case domain.OpLessOrEqual:
		return "$lte", nil
	case domain.OpGreaterThan:
		return "$gt", nil
	case domain.OpGreaterEqual:
		return "$gte", nil
	case domain.OpIn:
		return "$in", nil
	default:
		return "", fmt.Errorf("%w: unsupported operator %q", domain.ErrInvalidFilter, op)
	}
}
