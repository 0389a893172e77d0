package storage

import "testing"

func TestCompareValuesNumericCrossType(t *testing.T) {
	c, ok := CompareValues(IntValue(3), FloatValue(3.0))
	if !ok || c != 0 {
		t.Fatalf("got (%d, %v), want (0, true)", c, ok)
	}
	c, ok = CompareValues(IntValue(2), FloatValue(3.5))
	if !ok || c >= 0 {
		t.Fatalf("got (%d, %v), want (<0, true)", c, ok)
	}
}

func TestCompareValuesNullIsNotOrderable(t *testing.T) {
	if _, ok := CompareValues(Null, IntValue(1)); ok {
		t.Fatal("expected ok=false when one operand is NULL")
	}
	if _, ok := CompareValues(Null, Null); ok {
		t.Fatal("expected ok=false when both operands are NULL")
	}
}

func TestCompareValuesCrossKindNotOrderable(t *testing.T) {
	if _, ok := CompareValues(TextValue("1"), IntValue(1)); ok {
		t.Fatal("expected ok=false for TEXT vs INT")
	}
	if _, ok := CompareValues(BoolValue(true), IntValue(1)); ok {
		t.Fatal("expected ok=false for BOOLEAN vs INT")
	}
}

func TestEqualUsesCompareValues(t *testing.T) {
	if !IntValue(5).Equal(FloatValue(5.0)) {
		t.Fatal("expected 5 (INT) to equal 5.0 (FLOAT)")
	}
	if Null.Equal(Null) {
		t.Fatal("NULL must never equal NULL")
	}
}

func TestAssignableToWidensIntToFloat(t *testing.T) {
	if !IntValue(1).AssignableTo(FloatType) {
		t.Fatal("INT must be assignable to a FLOAT column")
	}
	if FloatValue(1.5).AssignableTo(IntType) {
		t.Fatal("FLOAT must not be assignable to an INT column")
	}
	if !Null.AssignableTo(IntType) {
		t.Fatal("NULL must be assignable to every column type")
	}
}

func TestCoerceToWidensIntToFloat(t *testing.T) {
	v := IntValue(7).CoerceTo(FloatType)
	if v.Kind != KindFloat || v.Float != 7.0 {
		t.Fatalf("got %+v", v)
	}
}

func TestValueFromAny(t *testing.T) {
	cases := []struct {
		in   any
		want ValueKind
	}{
		{nil, KindNull},
		{int64(1), KindInt},
		{1, KindInt},
		{1.5, KindFloat},
		{"x", KindText},
		{true, KindBool},
	}
	for _, c := range cases {
		if got := ValueFromAny(c.in).Kind; got != c.want {
			t.Errorf("ValueFromAny(%#v): got %v, want %v", c.in, got, c.want)
		}
	}
}

func TestSchemaColumnLookupIsCaseInsensitive(t *testing.T) {
	s := Schema{Columns: []Column{{Name: "Id", Type: IntType, PrimaryKey: true}, {Name: "Name", Type: TextType}}}
	if s.ColumnIndex("id") != 0 {
		t.Fatalf("got %d, want 0", s.ColumnIndex("id"))
	}
	if _, ok := s.Column("NAME"); !ok {
		t.Fatal("expected a case-insensitive match for NAME")
	}
	pk, ok := s.PrimaryKeyColumn()
	if !ok || pk.Name != "Id" {
		t.Fatalf("got %+v, %v", pk, ok)
	}
}

func TestSchemaForeignKeys(t *testing.T) {
	s := Schema{Columns: []Column{
		{Name: "id", Type: IntType, PrimaryKey: true},
		{Name: "dept_id", Type: IntType, References: &ForeignKeyRef{Table: "depts", Column: "id"}},
	}}
	fks := s.ForeignKeys()
	if len(fks) != 1 || fks[0].Name != "dept_id" {
		t.Fatalf("got %+v", fks)
	}
}

func TestRowCloneIsIndependent(t *testing.T) {
	r := Row{"a": IntValue(1)}
	c := r.Clone()
	c["a"] = IntValue(2)
	if r["a"].Int != 1 {
		t.Fatalf("mutating the clone affected the original: %+v", r)
	}
}

func TestColTypeStringAndParse(t *testing.T) {
	for _, ct := range []ColType{IntType, TextType, FloatType, BoolType} {
		s := ct.String()
		parsed, ok := ParseColType(s)
		if !ok || parsed != ct {
			t.Errorf("round trip failed for %v: got %q -> %v, %v", ct, s, parsed, ok)
		}
	}
	if _, ok := ParseColType("NOPE"); ok {
		t.Fatal("expected ok=false for an unknown type name")
	}
}
