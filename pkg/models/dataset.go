package models

// GroupSummary describes one released equivalence class.
type GroupSummary struct {
	Index       int               `json:"index"`
	Start       int               `json:"start"`
	Size        int               `json:"size"`
	Diversity   int               `json:"diversity"`
	Generalized map[string]string `json:"generalized"`
}

// AnonymizedDataset is the ordered output of one anonymization run.
type AnonymizedDataset struct {
	K                int                 `json:"k"`
	L                int                 `json:"l"`
	QuasiIdentifiers []string            `json:"quasi_identifiers"`
	SensitiveField   string              `json:"sensitive_field"`
	InputSize        int                 `json:"input_size"`
	Records          []GeneralizedRecord `json:"records"`
	Groups           []GroupSummary      `json:"groups"`
}

// Len returns the number of released records.
func (d *AnonymizedDataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

// Dropped returns how many input records were not released.
func (d *AnonymizedDataset) Dropped() int {
	if d == nil {
		return 0
	}
	return d.InputSize - len(d.Records)
}
