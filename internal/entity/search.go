package entity

// SearchSpec is one configured search-results page to poll.
// Loaded once per run from configuration; identity is the URL.
type SearchSpec struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// Label returns a human-readable name for logging, falling back to the
// URL when no name was configured.
func (s SearchSpec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// Candidate is a listing URL discovered on a search page, not yet
// classified or admitted. URL is canonical: absolute, with query and
// fragment stripped.
type Candidate struct {
	URL       string
	TitleHint string
}
