package cli

// Default values for CLI flags and formatted output.
const (
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
	// MaxNameLength is the maximum length of a display name in listings.
	MaxNameLength = 40
)
