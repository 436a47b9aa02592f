package model

// AppError is the structured payload carried by every stage error in the
// pipeline. Stage names the component that failed (fetch_sub, parse_sub, ...).
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Stage   string `json:"stage"`

	URL     string `json:"url,omitempty"`
	Line    int    `json:"line,omitempty"`    // 1-based; 0 means "not set"
	Snippet string `json:"snippet,omitempty"` // <= 200 chars
}
