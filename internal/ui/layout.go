package ui

// Terminal width thresholds for responsive layouts.
const (
	// LayoutCompactWidth is the threshold below which match rows drop the
	// location column.
	LayoutCompactWidth = 90

	// LayoutWideWidth is the minimum width to show notification metadata.
	LayoutWideWidth = 120
)
