package model

// Task describes one fetch+convert job for a single subscription URL.
// Tasks are built once per unique URL and never mutated afterwards.
type Task struct {
	// ID is a short random token used for worker-side bookkeeping
	// (artifact names in generate.ini). Unique within one run only.
	ID  string
	URL string

	// BinPath is the external converter binary; empty means the builtin
	// converter is used.
	BinPath string

	SpecialProtocols bool
}
