package cli

// Default values for CLI flags and formatted output.
const (
	// MaxDescriptionLength is the maximum length of a package description in listings.
	MaxDescriptionLength = 50
	// TabWidth is the width of tabs in formatted output.
	TabWidth = 2
)
