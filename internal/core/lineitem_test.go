package core

import (
	"errors"
	"math"
	"testing"
)

func TestWithMonthlyActualsSumsMonths(t *testing.T) {
	months := [MonthsPerYear]float64{100, 200}
	item, err := LineItem{Budget: 1200}.WithMonthlyActuals(months)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ActualsTotal != 300 {
		t.Fatalf("expected total 300, got %v", item.ActualsTotal)
	}
	if item.Budget != 1200 {
		t.Fatalf("budget should be preserved, got %v", item.Budget)
	}
	if !item.Consistent() {
		t.Fatalf("expected item to be consistent")
	}
}

func TestWithMonthlyActualsDecimalSum(t *testing.T) {
	months := [MonthsPerYear]float64{0.1, 0.2}
	item, err := LineItem{}.WithMonthlyActuals(months)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ActualsTotal != 0.3 {
		t.Fatalf("expected 0.3, got %v", item.ActualsTotal)
	}
}

func TestWithMonthlyActualsRejectsInvalid(t *testing.T) {
	bads := []float64{-1, math.NaN(), math.Inf(1)}
	for _, v := range bads {
		var months [MonthsPerYear]float64
		months[3] = v
		orig := LineItem{Budget: 10, ActualsTotal: 5}
		got, err := orig.WithMonthlyActuals(months)
		if !errors.Is(err, ErrInvalidMonthValue) {
			t.Fatalf("%v: expected ErrInvalidMonthValue, got %v", v, err)
		}
		if got != orig {
			t.Fatalf("%v: item should be unchanged on error", v)
		}
	}
}

func TestWithMonth(t *testing.T) {
	item := LineItem{Budget: 1200}
	item, err := item.WithMonth(0, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	item, err = item.WithMonth(1, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if item.ActualsTotal != 300 {
		t.Fatalf("expected 300, got %v", item.ActualsTotal)
	}
	if _, err := item.WithMonth(12, 1); !errors.Is(err, ErrInvalidMonthIndex) {
		t.Fatalf("expected ErrInvalidMonthIndex, got %v", err)
	}
	if _, err := item.WithMonth(-1, 1); !errors.Is(err, ErrInvalidMonthIndex) {
		t.Fatalf("expected ErrInvalidMonthIndex, got %v", err)
	}
}

func TestAggregatorTotalAlwaysMatchesMonths(t *testing.T) {
	item := LineItem{}
	values := []float64{12.5, 0, 99.99, 1000, 0.01, 7, 3.3, 0, 45, 60.6, 1, 2}
	for i, v := range values {
		var err error
		item, err = item.WithMonth(i, v)
		if err != nil {
			t.Fatalf("month %d: %v", i, err)
		}
		if !item.Consistent() {
			t.Fatalf("month %d: total %v does not match months", i, item.ActualsTotal)
		}
	}
}

func TestParseMonthValue(t *testing.T) {
	cases := []struct {
		in  string
		out float64
	}{
		{"100", 100},
		{" 42.5 ", 42.5},
		{"1,200", 1200},
		{"$1,200.50", 1200.50},
		{"", 0},
		{"abc", 0},
		{"-5", 0},
		{"NaN", 0},
		{"Inf", 0},
	}
	for _, tc := range cases {
		if got := ParseMonthValue(tc.in); got != tc.out {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.out, got)
		}
	}
}
