package format

import (
	"math"
	"testing"
)

func TestCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected string
	}{
		{name: "zero", input: 0, expected: "$0.00"},
		{name: "cents", input: 49.99, expected: "$49.99"},
		{name: "whole", input: 150, expected: "$150.00"},
		{name: "thousands", input: 1234.5, expected: "$1,234.50"},
		{name: "millions", input: 1234567.891, expected: "$1,234,567.89"},
		{name: "negative", input: -5, expected: "-$5.00"},
		{name: "negative rounding to zero", input: -0.001, expected: "$0.00"},
		{name: "NaN", input: math.NaN(), expected: "$0.00"},
		{name: "infinity", input: math.Inf(1), expected: "$0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Currency(tt.input)
			if result != tt.expected {
				t.Errorf("Currency(%v) = %q; want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{input: 0, expected: "0%"},
		{input: 1, expected: "100%"},
		{input: 0.4249, expected: "42%"},
		{input: 0.426, expected: "43%"},
		{input: math.NaN(), expected: "0%"},
		{input: -0.5, expected: "0%"},
	}

	for _, tt := range tests {
		result := Percent(tt.input)
		if result != tt.expected {
			t.Errorf("Percent(%v) = %q; want %q", tt.input, result, tt.expected)
		}
	}
}
