package model

// CodeBlock is a function or class sized piece of source produced by extraction
type CodeBlock struct {
	Text     string `json:"text"`               // Raw block text
	File     string `json:"file"`               // Origin file, relative to the repository root
	Language string `json:"language,omitempty"` // Adapter that produced the block (python, js, java, c)
}

// Fragment is a unit of comparison reduced to an embedding
type Fragment struct {
	Text   string    `json:"text"`
	RepoID string    `json:"repo_id"`
	Origin string    `json:"origin,omitempty"`
	Vector []float32 `json:"-"`
}

// IndexEntry is one persisted (vector, text) pair owned by a repository's store
type IndexEntry struct {
	Vector []float32 `json:"vector"`
	Text   string    `json:"text"`
	RepoID string    `json:"repo_id"`
}

// Candidate is a project returned by the search collaborator
type Candidate struct {
	Name        string `json:"name"`                  // owner/repo
	URL         string `json:"url"`                   // html_url
	Description string `json:"description,omitempty"` // Repository description, falls back to the name
	Stars       int    `json:"stars,omitempty"`
}

// ProjectRef is the name + reference pair surfaced in idea matches
type ProjectRef struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// SourceFile is one readable file of a fetched repository
type SourceFile struct {
	Path    string `json:"path"` // Relative to the repository root
	Content string `json:"-"`
}
