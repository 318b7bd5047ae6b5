package constants

// Format represents an output format accepted by the CLI.
type Format string

const (
	// FormatText renders human-readable lines.
	FormatText Format = "text"

	// FormatJSON renders machine-readable JSON.
	FormatJSON Format = "json"

	// FormatDOT renders a Graphviz graph.
	FormatDOT Format = "dot"
)

// Valid returns true if the format is a recognized value.
func (f Format) Valid() bool {
	switch f {
	case FormatText, FormatJSON, FormatDOT:
		return true
	}
	return false
}

// String returns the string representation of the format.
func (f Format) String() string {
	return string(f)
}
