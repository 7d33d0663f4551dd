package model

import "testing"

func TestConditionalLogic_Evaluate(t *testing.T) {
	values := map[string]string{"1": "Yes", "2": "150", "3": "gold-plan"}

	tests := []struct {
		name  string
		logic ConditionalLogic
		want  bool
	}{
		{"disabled", ConditionalLogic{Rules: []ConditionRule{{FieldID: "1", Value: "no"}}}, true},
		{"enabled without rules", ConditionalLogic{Enabled: true}, true},
		{"all match", ConditionalLogic{Enabled: true, LogicType: LogicTypeAll, Rules: []ConditionRule{
			{FieldID: "1", Operator: "is", Value: "yes"},
			{FieldID: "2", Operator: ">", Value: "100"},
		}}, true},
		{"all with one miss", ConditionalLogic{Enabled: true, LogicType: LogicTypeAll, Rules: []ConditionRule{
			{FieldID: "1", Operator: "is", Value: "yes"},
			{FieldID: "2", Operator: "<", Value: "100"},
		}}, false},
		{"any with one hit", ConditionalLogic{Enabled: true, LogicType: LogicTypeAny, Rules: []ConditionRule{
			{FieldID: "3", Operator: "starts_with", Value: "silver"},
			{FieldID: "3", Operator: "ends_with", Value: "plan"},
		}}, true},
		{"hide when matched", ConditionalLogic{Enabled: true, ActionType: ActionTypeHide, Rules: []ConditionRule{
			{FieldID: "3", Operator: "contains", Value: "gold"},
		}}, false},
		{"non numeric comparison", ConditionalLogic{Enabled: true, Rules: []ConditionRule{
			{FieldID: "1", Operator: ">", Value: "1"},
		}}, false},
		{"unknown operator", ConditionalLogic{Enabled: true, Rules: []ConditionRule{
			{FieldID: "1", Operator: "matches", Value: "Yes"},
		}}, false},
		{"isnot", ConditionalLogic{Enabled: true, Rules: []ConditionRule{
			{FieldID: "4", Operator: "isnot", Value: "x"},
		}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.logic.Evaluate(values); got != tt.want {
				t.Errorf("Evaluate = %v, want %v", got, tt.want)
			}
		})
	}
}
