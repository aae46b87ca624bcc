package risk

import (
	"errors"
	"math"
	"testing"
)

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()

	cases := []struct {
		level float64
		want  Category
	}{
		{0, CategoryChildrenSafe},
		{2.5, CategoryChildrenSafe},
		{5, CategoryChildrenSafe},
		{5.01, CategoryAdultsOnly},
		{10, CategoryAdultsOnly},
		{10.01, CategoryAnimalFeedOnly},
		{20, CategoryAnimalFeedOnly},
		{20.01, CategoryUnsafe},
		{1500, CategoryUnsafe},
	}
	for _, tc := range cases {
		got, err := Classify(tc.level)
		if err != nil {
			t.Fatalf("classify(%v): %v", tc.level, err)
		}
		if got != tc.want {
			t.Fatalf("classify(%v) = %q, want %q", tc.level, got, tc.want)
		}
	}
}

func TestClassifyRejectsInvalidMeasurements(t *testing.T) {
	t.Parallel()

	for _, level := range []float64{-0.01, -5, math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Classify(level)
		if !errors.Is(err, ErrInvalidMeasurement) {
			t.Fatalf("classify(%v) error = %v, want %v", level, err, ErrInvalidMeasurement)
		}
	}
}
