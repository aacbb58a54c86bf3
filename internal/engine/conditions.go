package engine

import (
	"strconv"
	"strings"

	"github.com/cadenzahq/cadenza/pkg/cadenza/domain"
)

const contextFieldPrefix = "context."

// EvaluateConditions folds a condition list left to right. An empty list is
// true. Each condition's Connective joins it to the next one; a blank
// connective means AND. Field names with the "context." prefix resolve
// against the execution context, everything else against the recipient.
func EvaluateConditions(conds []domain.Condition, rcp *domain.Recipient, execCtx map[string]string) bool {
	if len(conds) == 0 {
		return true
	}
	result := evaluateCondition(conds[0], rcp, execCtx)
	for i := 1; i < len(conds); i++ {
		next := evaluateCondition(conds[i], rcp, execCtx)
		if strings.EqualFold(conds[i-1].Connective, "OR") {
			result = result || next
		} else {
			result = result && next
		}
	}
	return result
}

func evaluateCondition(c domain.Condition, rcp *domain.Recipient, execCtx map[string]string) bool {
	if c.Field == "tags" {
		return evaluateTagCondition(c, rcp)
	}
	actual, found := resolveField(c.Field, rcp, execCtx)
	switch c.Operator {
	case domain.OpEq:
		return found && actual == c.Value
	case domain.OpNeq:
		return !found || actual != c.Value
	case domain.OpGt:
		return found && compareNumeric(actual, c.Value) > 0
	case domain.OpLt:
		return found && compareNumeric(actual, c.Value) < 0
	case domain.OpContains:
		return found && strings.Contains(actual, c.Value)
	case domain.OpNotContains:
		return !found || !strings.Contains(actual, c.Value)
	case domain.OpEmpty:
		return !found || actual == ""
	case domain.OpNotEmpty:
		return found && actual != ""
	}
	return false
}

// evaluateTagCondition treats contains as set membership on the tag list.
func evaluateTagCondition(c domain.Condition, rcp *domain.Recipient) bool {
	switch c.Operator {
	case domain.OpContains:
		return rcp.HasTag(c.Value)
	case domain.OpNotContains:
		return !rcp.HasTag(c.Value)
	case domain.OpEmpty:
		return len(rcp.Tags) == 0
	case domain.OpNotEmpty:
		return len(rcp.Tags) > 0
	case domain.OpEq:
		return len(rcp.Tags) == 1 && rcp.Tags[0] == c.Value
	case domain.OpNeq:
		return !(len(rcp.Tags) == 1 && rcp.Tags[0] == c.Value)
	}
	return false
}

func resolveField(field string, rcp *domain.Recipient, execCtx map[string]string) (string, bool) {
	if strings.HasPrefix(field, contextFieldPrefix) {
		v, ok := execCtx[strings.TrimPrefix(field, contextFieldPrefix)]
		return v, ok
	}
	switch field {
	case "id":
		return rcp.ID, true
	case "email":
		return rcp.Email, true
	case "first_name":
		return rcp.FirstName, true
	case "last_name":
		return rcp.LastName, true
	case "engagement_score":
		return strconv.Itoa(rcp.EngagementScore), true
	}
	v, ok := rcp.Fields[field]
	return v, ok
}

// compareNumeric compares the operands as floats when both parse, falling
// back to lexicographic order. Returns -1, 0 or 1.
func compareNumeric(a, b string) int {
	fa, errA := strconv.ParseFloat(strings.TrimSpace(a), 64)
	fb, errB := strconv.ParseFloat(strings.TrimSpace(b), 64)
	if errA == nil && errB == nil {
		switch {
		case fa < fb:
			return -1
		case fa > fb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}
