package database

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Task statuses. Transitions are one-way: pending -> processing ->
// completed or failed. Terminal rows are never updated again.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Artifact is one validated upload held in storage.
type Artifact struct {
	ID               uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	StorageKey       string    `gorm:"uniqueIndex;not null" json:"-"`
	OriginalFilename string    `gorm:"not null" json:"original_filename"`
	Category         string    `gorm:"not null" json:"category"`
	MimeType         string    `gorm:"not null" json:"mime_type"`
	SHA256           string    `gorm:"column:sha256;index" json:"sha256"`
	SizeBytes        int64     `json:"size_bytes"`
	ClientID         string    `gorm:"index" json:"-"`
	CreatedAt        time.Time `gorm:"index" json:"created_at"`
}

func (a *Artifact) BeforeCreate(tx *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}

// ConversionTask tracks one conversion from request to terminal state.
// ExtraInputIDs holds additional inputs for multi-file kinds (merge,
// images-to-pdf) as a JSON array of artifact IDs, ordered as submitted.
type ConversionTask struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	InputID        uuid.UUID  `gorm:"type:uuid;index;not null" json:"input_id"`
	ExtraInputIDs  string     `gorm:"type:text" json:"-"`
	Kind           string     `gorm:"not null;index" json:"kind"`
	Status         string     `gorm:"not null;index;default:pending" json:"status"`
	Options        string     `gorm:"type:text" json:"-"`
	ErrorKind      string     `json:"error_kind,omitempty"`
	ErrorMessage   string     `json:"error_message,omitempty"`
	OutputKey      string     `json:"-"`
	OutputFilename string     `json:"output_filename,omitempty"`
	OutputSize     int64      `json:"output_size,omitempty"`
	ClientID       string     `gorm:"index" json:"-"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	Input Artifact `gorm:"foreignKey:InputID" json:"-"`
}

func (t *ConversionTask) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// SetExtraInputs stores the ordered additional input IDs.
func (t *ConversionTask) SetExtraInputs(ids []uuid.UUID) error {
	if len(ids) == 0 {
		t.ExtraInputIDs = ""
		return nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	t.ExtraInputIDs = string(data)
	return nil
}

// ExtraInputs returns the ordered additional input IDs.
func (t *ConversionTask) ExtraInputs() ([]uuid.UUID, error) {
	if t.ExtraInputIDs == "" {
		return nil, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(t.ExtraInputIDs), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// SetOptions stores the task's option bag as JSON.
func (t *ConversionTask) SetOptions(opts map[string]interface{}) error {
	if len(opts) == 0 {
		t.Options = ""
		return nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return err
	}
	t.Options = string(data)
	return nil
}

// OptionBag returns the stored option bag, never nil.
func (t *ConversionTask) OptionBag() (map[string]interface{}, error) {
	opts := make(map[string]interface{})
	if t.Options == "" {
		return opts, nil
	}
	if err := json.Unmarshal([]byte(t.Options), &opts); err != nil {
		return nil, err
	}
	return opts, nil
}

// IsTerminal reports whether the task has reached a final state.
func (t *ConversionTask) IsTerminal() bool {
	return t.Status == StatusCompleted || t.Status == StatusFailed
}

// GetAllModels returns every model for migration.
func GetAllModels() []interface{} {
	return []interface{}{
		&Artifact{},
		&ConversionTask{},
	}
}
