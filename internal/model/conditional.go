package model

import (
	"strings"

	"github.com/shopspring/decimal"
)

const (
	LogicTypeAll = "all"
	LogicTypeAny = "any"

	ActionTypeShow = "show"
	ActionTypeHide = "hide"
)

type ConditionRule struct {
	FieldID  string `json:"field_id"`
	Operator string `json:"operator"`
	Value    string `json:"value"`
}

// ConditionalLogic feed 的执行条件，未启用时恒为真
type ConditionalLogic struct {
	Enabled    bool            `json:"enabled"`
	ActionType string          `json:"action_type,omitempty"`
	LogicType  string          `json:"logic_type,omitempty"`
	Rules      []ConditionRule `json:"rules,omitempty"`
}

// Evaluate 按提交的字段值判断条件是否成立
func (c ConditionalLogic) Evaluate(values map[string]string) bool {
	if !c.Enabled || len(c.Rules) == 0 {
		return true
	}

	matched := 0
	for _, rule := range c.Rules {
		if rule.Match(values[rule.FieldID]) {
			matched++
		}
	}

	var ok bool
	if c.LogicType == LogicTypeAny {
		ok = matched > 0
	} else {
		ok = matched == len(c.Rules)
	}

	if c.ActionType == ActionTypeHide {
		return !ok
	}
	return ok
}

func (r ConditionRule) Match(value string) bool {
	switch r.Operator {
	case "is", "":
		return strings.EqualFold(value, r.Value)
	case "isnot":
		return !strings.EqualFold(value, r.Value)
	case "contains":
		return strings.Contains(value, r.Value)
	case "starts_with":
		return strings.HasPrefix(value, r.Value)
	case "ends_with":
		return strings.HasSuffix(value, r.Value)
	case ">", "<":
		left, err1 := decimal.NewFromString(strings.TrimSpace(value))
		right, err2 := decimal.NewFromString(strings.TrimSpace(r.Value))
		if err1 != nil || err2 != nil {
			return false
		}
		if r.Operator == ">" {
			return left.GreaterThan(right)
		}
		return left.LessThan(right)
	default:
		return false
	}
}
