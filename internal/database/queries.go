package database

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrTaskNotFound     = errors.New("task not found")
)

// GetArtifact fetches one artifact by ID.
func GetArtifact(db *gorm.DB, id uuid.UUID) (*Artifact, error) {
	var artifact Artifact
	if err := db.First(&artifact, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrArtifactNotFound
		}
		return nil, err
	}
	return &artifact, nil
}

// GetTask fetches one task by ID.
func GetTask(db *gorm.DB, id uuid.UUID) (*ConversionTask, error) {
	var task ConversionTask
	if err := db.First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return &task, nil
}

// MarkCompleted records a successful conversion. The update is guarded on
// the processing status so a timed-out task cannot be completed afterwards.
func MarkCompleted(db *gorm.DB, id uuid.UUID, outputKey, outputFilename string, outputSize int64, options string) (bool, error) {
	now := time.Now().UTC()
	res := db.Model(&ConversionTask{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Updates(map[string]interface{}{
			"status":          StatusCompleted,
			"output_key":      outputKey,
			"output_filename": outputFilename,
			"output_size":     outputSize,
			"options":         options,
			"completed_at":    &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkFailed records a failed conversion, guarded the same way.
func MarkFailed(db *gorm.DB, id uuid.UUID, errorKind, errorMessage string) (bool, error) {
	now := time.Now().UTC()
	res := db.Model(&ConversionTask{}).
		Where("id = ? AND status = ?", id, StatusProcessing).
		Updates(map[string]interface{}{
			"status":        StatusFailed,
			"error_kind":    errorKind,
			"error_message": errorMessage,
			"completed_at":  &now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// StaleTerminalTasks returns terminal tasks older than cutoff.
func StaleTerminalTasks(db *gorm.DB, cutoff time.Time) ([]ConversionTask, error) {
	var tasks []ConversionTask
	err := db.Where("status IN ? AND created_at < ?",
		[]string{StatusCompleted, StatusFailed}, cutoff).Find(&tasks).Error
	return tasks, err
}

// StaleArtifacts returns artifacts older than cutoff that no live task still
// references, either as primary input or inside the extra-input list.
func StaleArtifacts(db *gorm.DB, cutoff time.Time) ([]Artifact, error) {
	var artifacts []Artifact
	sub := db.Model(&ConversionTask{}).
		Select("1").
		Where("conversion_tasks.status IN ?", []string{StatusPending, StatusProcessing}).
		Where("conversion_tasks.input_id = artifacts.id OR conversion_tasks.extra_input_ids LIKE '%' || CAST(artifacts.id AS TEXT) || '%'")
	err := db.Where("created_at < ?", cutoff).
		Where("NOT EXISTS (?)", sub).
		Find(&artifacts).Error
	return artifacts, err
}
