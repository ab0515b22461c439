package dispatch

// IdentifierRule declares a single UUID argument such as server_id.
type IdentifierRule struct {
	Field    string
	Required bool
}

// ListRule declares a list-of-UUID argument such as server_ids.
type ListRule struct {
	Field    string
	Required bool
	// NonEmpty rejects an empty list.
	NonEmpty bool
	// Hint is returned alongside the offending elements.
	Hint string
}

// PathRule declares a file path argument.
type PathRule struct {
	Field           string
	Required        bool
	Absolute        bool
	ForbidTraversal bool
}

// Operation describes one tool-facing remote operation: its name and the
// shape of its inputs. The pipeline derives its validation stages from it.
type Operation struct {
	Name string

	Identifiers     []IdentifierRule
	IdentifierLists []ListRule
	Paths           []PathRule

	// Required lists other arguments that must be present and non-empty.
	Required []string

	// Validators run after the built-in checks and before credential
	// resolution, for operation specific input rules.
	Validators []Stage

	// Echo lists extra argument names copied into a success envelope.
	Echo []string

	// Local operations need a valid region and workspace but no stored
	// credential, e.g. storing credentials.
	Local bool

	// RegionOnly operations take no workspace argument. Implies Local.
	RegionOnly bool
}

// DefaultUUIDHint is returned with identifier list failures.
const DefaultUUIDHint = "Each server ID must be in UUID format. (e.g., 550e8400-e29b-41d4-a716-446655440000)"
