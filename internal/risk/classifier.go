// Package risk classifies aflatoxin contamination measurements.
//
// Classify is the single source of truth for the safety thresholds. Callers
// must not re-implement the boundaries.
package risk

import (
	"math"
	"strconv"

	apperrors "github.com/granarylabs/granary/internal/platform/errors"
)

// Category is the safety category for a contamination level.
type Category string

const (
	// CategoryChildrenSafe marks grain safe for all consumers including children.
	CategoryChildrenSafe Category = "children_safe"
	// CategoryAdultsOnly marks grain safe for adult consumption only.
	CategoryAdultsOnly Category = "adults_only"
	// CategoryAnimalFeedOnly marks grain fit for animal feed only.
	CategoryAnimalFeedOnly Category = "animal_feed_only"
	// CategoryUnsafe marks grain unfit for any consumption.
	CategoryUnsafe Category = "unsafe"
)

// ErrInvalidMeasurement indicates a negative or non-finite contamination level.
var ErrInvalidMeasurement = apperrors.New(apperrors.CodeRiskInvalidMeasurement, "contamination level must be a finite non-negative number")

// Classify maps an aflatoxin level in ppb to its safety category.
// Boundaries are inclusive on the upper end of each band.
func Classify(level float64) (Category, error) {
	if math.IsNaN(level) || math.IsInf(level, 0) || level < 0 {
		return "", apperrors.WithMetadata(
			apperrors.CodeRiskInvalidMeasurement,
			"contamination level must be a finite non-negative number",
			map[string]string{"level": strconv.FormatFloat(level, 'g', -1, 64)},
		)
	}
	switch {
	case level <= 5:
		return CategoryChildrenSafe, nil
	case level <= 10:
		return CategoryAdultsOnly, nil
	case level <= 20:
		return CategoryAnimalFeedOnly, nil
	default:
		return CategoryUnsafe, nil
	}
}
