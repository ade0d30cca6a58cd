package models

import "time"

// Candidate is the scored outcome of one (k, l) pair.
type Candidate struct {
	K             int     `json:"k"`
	L             int     `json:"l"`
	Dropped       int     `json:"dropped"`
	Accepted      bool    `json:"accepted"`
	Groups        int     `json:"groups"`
	PrivacyScore  float64 `json:"privacy_score"`
	CombinedScore float64 `json:"combined_score"`
}

// SearchSettings echoes the configuration a report was produced with.
type SearchSettings struct {
	QuasiIdentifiers []string `json:"quasi_identifiers"`
	SensitiveField   string   `json:"sensitive_field"`
	MaxK             int      `json:"max_k"`
	LMax             int      `json:"l_max"`
	AllowedDrop      int      `json:"allowed_drop"`
}

// SearchReport is what the search hands to a sink.
type SearchReport struct {
	ID          string             `json:"id"`
	Settings    SearchSettings     `json:"settings"`
	BestK       int                `json:"best_k"`
	BestL       int                `json:"best_l"`
	BestScore   float64            `json:"best_score"`
	Flags       []string           `json:"flags,omitempty"`
	Candidates  []Candidate        `json:"candidates"`
	Dataset     *AnonymizedDataset `json:"dataset"`
	InputSize   int                `json:"input_size"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt time.Time          `json:"completed_at"`
	Duration    time.Duration      `json:"duration"`
}
