package sietch

import (
	"testing"
)

func TestFilterBuilder(t *testing.T) {
	t.Run("NewFilter creates empty AND root", func(t *testing.T) {
		f := NewFilter().Build()
		if f.Logic != LogicAnd {
			t.Errorf("Expected AND root, got %s", f.Logic)
		}
		if !f.IsEmpty() {
			t.Error("Expected empty filter")
		}
	})

	t.Run("Where adds condition", func(t *testing.T) {
		f := NewFilter().Where("balance", OpGreaterThan, 100).Build()
		if len(f.Conditions) != 1 {
			t.Fatalf("Expected 1 condition, got %d", len(f.Conditions))
		}
		c := f.Conditions[0]
		if c.Field != "balance" || c.Operator != OpGreaterThan || c.Value != 100 {
			t.Errorf("Unexpected condition %+v", c)
		}
	})

	t.Run("Or and Not add groups", func(t *testing.T) {
		f := NewFilter().
			Or(
				Condition{Field: "id", Operator: OpEqual, Value: 1},
				Condition{Field: "id", Operator: OpEqual, Value: 2},
			).
			Not(Condition{Field: "balance", Operator: OpEqual, Value: 0}).
			Build()

		if len(f.Groups) != 2 {
			t.Fatalf("Expected 2 groups, got %d", len(f.Groups))
		}
		if f.Groups[0].Logic != LogicOr || len(f.Groups[0].Conditions) != 2 {
			t.Errorf("Unexpected OR group %+v", f.Groups[0])
		}
		if f.Groups[1].Logic != LogicNot {
			t.Errorf("Expected NOT group, got %s", f.Groups[1].Logic)
		}
	})

	t.Run("empty Or, Not and Group are ignored", func(t *testing.T) {
		f := NewFilter().Or().Not().Group(nil).Group(&Filter{}).Build()
		if len(f.Groups) != 0 {
			t.Errorf("Expected no groups, got %d", len(f.Groups))
		}
	})
}

func TestFilterClone(t *testing.T) {
	orig := NewFilter().
		Where("balance", OpGreaterThan, 100).
		Or(Condition{Field: "id", Operator: OpEqual, Value: 1}).
		Build()

	c := orig.Clone()
	c.Conditions[0].Value = 5
	c.Groups[0].Conditions = append(c.Groups[0].Conditions, Condition{Field: "id", Operator: OpEqual, Value: 2})

	if orig.Conditions[0].Value != 100 {
		t.Errorf("Clone shares conditions with original")
	}
	if len(orig.Groups[0].Conditions) != 1 {
		t.Errorf("Clone shares groups with original")
	}

	var nilFilter *Filter
	if nilFilter.Clone() != nil {
		t.Error("Clone of nil must be nil")
	}
}

func TestAndCombination(t *testing.T) {
	extra := Condition{Field: DeletedAtField, Operator: OpIsNull}

	tests := []struct {
		name       string
		in         *Filter
		wantConds  int
		wantGroups int
		wrapped    bool
	}{
		{"nil filter", nil, 1, 0, false},
		{"AND root gets condition prepended", NewFilter().Where("a", OpEqual, 1).Build(), 2, 0, false},
		{"implicit AND root", &Filter{Conditions: []Condition{{Field: "a", Operator: OpEqual, Value: 1}}}, 2, 0, false},
		{"OR root is wrapped", &Filter{Logic: LogicOr, Conditions: []Condition{{Field: "a", Operator: OpEqual, Value: 1}, {Field: "b", Operator: OpEqual, Value: 2}}}, 1, 1, true},
		{"NOT root is wrapped", &Filter{Logic: LogicNot, Conditions: []Condition{{Field: "a", Operator: OpEqual, Value: 1}}}, 1, 1, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := and(tc.in, extra)
			if got.Logic != LogicAnd {
				t.Fatalf("Expected AND root, got %s", got.Logic)
			}
			if len(got.Conditions) != tc.wantConds {
				t.Errorf("Expected %d conditions, got %d", tc.wantConds, len(got.Conditions))
			}
			if len(got.Groups) != tc.wantGroups {
				t.Errorf("Expected %d groups, got %d", tc.wantGroups, len(got.Groups))
			}
			if got.Conditions[0] != extra {
				t.Errorf("Expected injected condition first, got %+v", got.Conditions[0])
			}
			if tc.wrapped && got.Groups[0].Logic != tc.in.Logic {
				t.Errorf("Expected wrapped %s group, got %s", tc.in.Logic, got.Groups[0].Logic)
			}
			if tc.in != nil && len(tc.in.Conditions) > 0 && tc.in.Conditions[0] == extra {
				t.Error("Input filter was modified")
			}
		})
	}
}

func TestQueryBuilder(t *testing.T) {
	t.Run("Where keeps declaration order", func(t *testing.T) {
		q := NewQuery().Where("a", OpEqual, 1).Where("b", OpEqual, 2)
		if q.Filter.Conditions[0].Field != "a" || q.Filter.Conditions[1].Field != "b" {
			t.Errorf("Unexpected order %+v", q.Filter.Conditions)
		}
	})

	t.Run("Filtered nests both trees", func(t *testing.T) {
		q := NewQuery().Where("a", OpEqual, 1).Filtered(&Filter{Logic: LogicOr, Conditions: []Condition{{Field: "b", Operator: OpEqual, Value: 2}}})
		if len(q.Filter.Groups) != 2 {
			t.Errorf("Expected 2 groups, got %d", len(q.Filter.Groups))
		}
	})

	t.Run("deletion modes", func(t *testing.T) {
		if NewQuery().Deleted != DeletedModeDefault {
			t.Error("Expected default mode")
		}
		if NewQuery().WithDeleted().Deleted != DeletedModeInclude {
			t.Error("Expected include mode")
		}
		if NewQuery().OnlyDeleted().Deleted != DeletedModeOnly {
			t.Error("Expected only mode")
		}
	})

	t.Run("Clone is independent", func(t *testing.T) {
		q := NewQuery().Where("a", OpEqual, 1).OrderBy("a", Desc).WithLimit(10).WithOffset(5)
		c := q.Clone()
		c.Orders[0].Direction = Asc
		c.Where("b", OpEqual, 2)
		c.Limit = 1

		if q.Orders[0].Direction != Desc || len(q.Filter.Conditions) != 1 || q.Limit != 10 {
			t.Errorf("Clone shares state with original: %+v", q)
		}
	})
}
