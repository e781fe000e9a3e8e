package models

// ScoredCandidate is one entry in a hybrid context result set. Reasons lists
// the signals that contributed, in evaluation order ("imported" before
// "git-history").
type ScoredCandidate struct {
	Path    string   `json:"path"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// CodeChunk is a named, line-bounded structural unit extracted from a source
// file. Lines are 1-indexed and inclusive. Parent carries the enclosing class
// name for nested definitions; nested chunks may overlap their enclosing
// chunk's span.
type CodeChunk struct {
	Kind      string `json:"kind"` // "func", "method" or "class"
	Name      string `json:"name,omitempty"`
	Parent    string `json:"parent,omitempty"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Content   string `json:"content"`
}

// SearchMatch is a single grep hit. Line is 1-indexed.
type SearchMatch struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Content string `json:"content"`
}

// ChunkPayload is the flat record stored per vector point when chunks are
// pushed into Qdrant for downstream semantic search.
type ChunkPayload struct {
	FilePath  string `json:"file_path"`
	Language  string `json:"language"`
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Parent    string `json:"parent"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	CodeHash  string `json:"code_hash"`
	Content   string `json:"content"`
}
