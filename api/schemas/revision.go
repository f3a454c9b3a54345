package schemas

import "time"

// RevisionInfo describes one commit scanned from history together with its
// heuristic relevance to a failure.
type RevisionInfo struct {
	ID           string    `json:"hash"`
	Author       string    `json:"author"`
	Timestamp    time.Time `json:"timestamp"`
	Message      string    `json:"message"`
	ChangedFiles []string  `json:"changed_files"`
	DiffText     string    `json:"diff"`
	// RelevanceScore is in [0,1] after scoring. A location bonus may push it
	// above 1.
	RelevanceScore float64 `json:"relevance_score"`
}

// FileChanges holds the diff of a single file within a revision, with the
// added and removed lines split out.
type FileChanges struct {
	Path      string   `json:"file_path"`
	Additions []string `json:"additions"`
	Deletions []string `json:"deletions"`
	Diff      string   `json:"diff"`
}
