package structdiff

import "testing"

func TestEqualIdentity(t *testing.T) {
	shared := NewMapping().Set("a", Number(1))
	clone := NewMapping().Set("a", Number(1))

	cases := []struct {
		name string
		a, b Value
		opts Options
		want bool
	}{
		{"numbers by value", Number(1), Number(1), Options{}, true},
		{"numbers differ", Number(1), Number(2), Options{}, false},
		{"strings by value", String("x"), String("x"), Options{}, true},
		{"bools by value", Bool(true), Bool(true), Options{}, true},
		{"null equals null", Null{}, Null{}, Options{}, true},
		{"nil equals null", nil, Null{}, Options{}, true},
		{"nil equals nil", nil, nil, Options{}, true},
		{"null vs scalar", Null{}, Number(0), Options{}, false},
		{"same composite instance", shared, shared, Options{}, true},
		{"structurally equal composites are not identical", shared, clone, Options{}, false},
		{"case differs without option", String("Foo"), String("foo"), Options{}, false},
		{"case differs with option", String("Foo"), String("foo"), Options{IgnoreCase: true}, true},
		{"ignore case only touches strings", Number(1), Number(2), Options{IgnoreCase: true}, false},
		{"cross-kind never equal", String("1"), Number(1), Options{}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := equal(tc.a, tc.b, tc.opts); got != tc.want {
				t.Fatalf("equal(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}

func TestEqualCustomRuleIsExclusive(t *testing.T) {
	calls := 0
	opts := Options{
		IgnoreCase: true,
		CustomEqual: func(a, b Value) bool {
			calls++
			return false
		},
	}
	// identity still wins before the custom rule
	if !equal(Number(1), Number(1), opts) {
		t.Fatal("identity must short-circuit")
	}
	if calls != 0 {
		t.Fatal("custom rule must not run for identical values")
	}
	// but once identity fails, the custom rule is the only voice
	if equal(String("Foo"), String("foo"), opts) {
		t.Fatal("custom rule must override the case-insensitive rule")
	}
	if calls != 1 {
		t.Fatalf("custom rule calls: %d", calls)
	}
}
