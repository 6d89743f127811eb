package domain

import "time"

// Job is the durable record of one submitted image.
type Job struct {
	JobID         string         `json:"imageId"`
	StorageKey    string         `json:"storageKey"`
	FileName      string         `json:"fileName"`
	ContentType   string         `json:"contentType"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     *time.Time     `json:"updatedAt"`
	ExtractedData *ExtractedData `json:"extractedData"`
	ErrorMessage  *string        `json:"errorMessage"`
}

// ExtractedData holds the product attributes returned by the inference service.
type ExtractedData struct {
	ProductName       string         `json:"productName,omitempty"`
	Brand             string         `json:"brand,omitempty"`
	Category          string         `json:"category,omitempty"`
	Price             string         `json:"price,omitempty"`
	Dimensions        string         `json:"dimensions,omitempty"`
	Weight            string         `json:"weight,omitempty"`
	Description       string         `json:"description,omitempty"`
	AdditionalDetails map[string]any `json:"additionalDetails,omitempty"`
}

// Clone returns a deep copy of d, including nested additionalDetails values.
func (d *ExtractedData) Clone() *ExtractedData {
	if d == nil {
		return nil
	}
	c := *d
	if d.AdditionalDetails != nil {
		c.AdditionalDetails = cloneValue(d.AdditionalDetails).(map[string]any)
	}
	return &c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, inner := range t {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		s := make([]any, len(t))
		for i, inner := range t {
			s[i] = cloneValue(inner)
		}
		return s
	default:
		return v
	}
}

// JobUpdate is a guarded change to a job record. It applies only while the
// stored status equals From.
type JobUpdate struct {
	From          Status
	To            Status
	ExtractedData *ExtractedData
	ErrorMessage  string
	UpdatedAt     time.Time
}

// Validate checks the update against the state machine and the result invariants:
// extracted data only with COMPLETED, an error message only with FAILED.
func (u JobUpdate) Validate() error {
	if !CanTransition(u.From, u.To) {
		return ErrInvalidTransition
	}

	switch u.To {
	case JobStatusCompleted:
		if u.ExtractedData == nil {
			return NewValidationError("extractedData", "required when completing a job")
		}
		if u.ErrorMessage != "" {
			return NewValidationError("errorMessage", "must be empty when completing a job")
		}
	case JobStatusFailed:
		if u.ErrorMessage == "" {
			return NewValidationError("errorMessage", "required when failing a job")
		}
		if u.ExtractedData != nil {
			return NewValidationError("extractedData", "must be empty when failing a job")
		}
	default:
		if u.ExtractedData != nil || u.ErrorMessage != "" {
			return NewValidationError("status", "results may only be set on a terminal transition")
		}
	}

	return nil
}

// Apply returns a copy of job with the update applied. The caller is expected
// to have checked the stored status against u.From.
func (u JobUpdate) Apply(job Job) Job {
	updatedAt := u.UpdatedAt
	job.Status = u.To
	job.UpdatedAt = &updatedAt
	job.ExtractedData = u.ExtractedData
	job.ErrorMessage = nil
	if u.ErrorMessage != "" {
		msg := u.ErrorMessage
		job.ErrorMessage = &msg
	}
	return job
}
