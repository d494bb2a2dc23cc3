package task

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/docmill/docmill/internal/config"
	"github.com/docmill/docmill/internal/database"
	"github.com/docmill/docmill/internal/engine"
	"github.com/docmill/docmill/internal/logging"
	"github.com/docmill/docmill/internal/ratelimit"
	"github.com/docmill/docmill/internal/security"
	"github.com/docmill/docmill/internal/storage"
)

var (
	ErrValidationFailed = errors.New("file validation failed")
	ErrNoOutput         = errors.New("task has no completed output")
	ErrStorage          = errors.New("storage error")
	ErrTimeout          = errors.New("conversion timed out")
)

// Pipeline orchestrates the validate -> create-task -> convert -> finalize
// sequence. Callers block until the task reaches a terminal state.
type Pipeline struct {
	db      *gorm.DB
	store   storage.BackendWithInfo
	limiter *ratelimit.Limiter
	checker *security.Checker
	engine  *engine.Engine
	timeout time.Duration
}

// New builds a Pipeline. The per-conversion timeout defaults to 5 minutes
// (CONVERSION_TIMEOUT).
func New(db *gorm.DB, store storage.BackendWithInfo, limiter *ratelimit.Limiter, checker *security.Checker, eng *engine.Engine) *Pipeline {
	return &Pipeline{
		db:      db,
		store:   store,
		limiter: limiter,
		checker: checker,
		engine:  eng,
		timeout: config.GetDuration("CONVERSION_TIMEOUT", 5*time.Minute),
	}
}

// UploadFile is one file in an upload batch.
type UploadFile struct {
	Name   string
	Reader io.ReadSeeker
	Size   int64
}

// UploadOne validates and stores a single file. On rejection the CheckResult
// carries the reasons and its Err field the taxonomy error; no record or
// blob is created.
func (p *Pipeline) UploadOne(ctx context.Context, clientID string, file UploadFile) (*database.Artifact, *security.CheckResult, error) {
	if err := p.limiter.Allow(ctx, clientID, ratelimit.ActionUpload); err != nil {
		return nil, nil, err
	}
	return p.storeValidated(ctx, clientID, file)
}

// UploadBatch validates and stores a batch for a multi-file operation.
// Validation runs in parallel but artifacts keep the submitted order.
// If any file fails, every artifact already stored in this batch is rolled
// back so no orphans remain.
func (p *Pipeline) UploadBatch(ctx context.Context, clientID string, kind engine.Kind, files []UploadFile) ([]*database.Artifact, error) {
	if err := engine.ValidateInputCount(kind, len(files)); err != nil {
		return nil, err
	}

	// Validate everything before storing anything.
	results := make([]*security.CheckResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range files {
		g.Go(func() error {
			if err := p.limiter.Allow(gctx, clientID, ratelimit.ActionUpload); err != nil {
				return err
			}
			res, err := p.checker.CheckFile(files[i].Reader, files[i].Name, files[i].Size)
			if err != nil {
				return fmt.Errorf("validating %s: %w", files[i].Name, err)
			}
			if !res.OK {
				return fmt.Errorf("%w: %s: %w", ErrValidationFailed, files[i].Name, res.Err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	artifacts := make([]*database.Artifact, 0, len(files))
	rollback := func() {
		for _, a := range artifacts {
			if err := p.store.Delete(ctx, a.StorageKey); err != nil {
				logging.Logf("[UPLOAD] rollback: failed to delete blob %s: %v", a.StorageKey, err)
			}
			if err := p.db.Delete(a).Error; err != nil {
				logging.Logf("[UPLOAD] rollback: failed to delete record %s: %v", a.ID, err)
			}
		}
	}

	for i := range files {
		artifact, err := p.persistArtifact(ctx, clientID, files[i], results[i])
		if err != nil {
			rollback()
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}
	return artifacts, nil
}

func (p *Pipeline) storeValidated(ctx context.Context, clientID string, file UploadFile) (*database.Artifact, *security.CheckResult, error) {
	res, err := p.checker.CheckFile(file.Reader, file.Name, file.Size)
	if err != nil {
		return nil, nil, fmt.Errorf("validating %s: %w", file.Name, err)
	}
	if !res.OK {
		return nil, res, fmt.Errorf("%w: %s: %w", ErrValidationFailed, file.Name, res.Err)
	}
	artifact, err := p.persistArtifact(ctx, clientID, file, res)
	if err != nil {
		return nil, res, err
	}
	return artifact, res, nil
}

func (p *Pipeline) persistArtifact(ctx context.Context, clientID string, file UploadFile, res *security.CheckResult) (*database.Artifact, error) {
	artifact := &database.Artifact{
		ID:               uuid.New(),
		OriginalFilename: filepath.Base(file.Name),
		Category:         string(res.Category),
		MimeType:         res.MimeType,
		SHA256:           res.SHA256,
		SizeBytes:        file.Size,
		ClientID:         clientID,
	}
	artifact.StorageKey = storage.UploadKey(artifact.ID, res.Extension)

	if err := p.store.Put(ctx, artifact.StorageKey, file.Reader); err != nil {
		return nil, fmt.Errorf("%w: storing upload: %w", ErrStorage, err)
	}
	if err := p.db.Create(artifact).Error; err != nil {
		if derr := p.store.Delete(ctx, artifact.StorageKey); derr != nil {
			logging.Logf("[UPLOAD] failed to delete blob after record failure: %v", derr)
		}
		return nil, fmt.Errorf("%w: recording upload: %w", ErrStorage, err)
	}
	return artifact, nil
}

// Convert runs one conversion synchronously. The task record is created in
// processing only after the rate gate and option parsing both pass, and is
// resolved to exactly one terminal state before Convert returns.
func (p *Pipeline) Convert(ctx context.Context, clientID string, kind engine.Kind, inputIDs []uuid.UUID, bag map[string]interface{}) (*database.ConversionTask, error) {
	if err := p.limiter.Allow(ctx, clientID, ratelimit.ActionConversion); err != nil {
		return nil, err
	}
	if err := engine.ValidateInputCount(kind, len(inputIDs)); err != nil {
		return nil, err
	}
	opts, err := engine.ParseOptions(kind, bag)
	if err != nil {
		return nil, err
	}

	artifacts := make([]*database.Artifact, len(inputIDs))
	wantCategory := engine.InputCategory(kind)
	for i, id := range inputIDs {
		artifact, err := database.GetArtifact(p.db, id)
		if err != nil {
			return nil, err
		}
		if artifact.Category != wantCategory {
			return nil, fmt.Errorf("%w: %s requires %s input, %s is %s",
				engine.ErrUnsupportedOption, kind, wantCategory, artifact.OriginalFilename, artifact.Category)
		}
		artifacts[i] = artifact
	}

	now := time.Now().UTC()
	task := &database.ConversionTask{
		InputID:   inputIDs[0],
		Kind:      string(kind),
		Status:    database.StatusProcessing,
		ClientID:  clientID,
		StartedAt: &now,
	}
	if err := task.SetExtraInputs(inputIDs[1:]); err != nil {
		return nil, fmt.Errorf("encoding extra inputs: %w", err)
	}
	if err := task.SetOptions(bag); err != nil {
		return nil, fmt.Errorf("encoding options: %w", err)
	}
	if err := p.db.Create(task).Error; err != nil {
		return nil, fmt.Errorf("%w: creating task: %w", ErrStorage, err)
	}

	p.run(ctx, task, kind, artifacts, opts, bag)
	return database.GetTask(p.db, task.ID)
}

// run executes the engine under the conversion deadline. The worker
// goroutine owns the scratch directory; on timeout it keeps running until
// the engine returns, then finds the task already failed and discards its
// result. Terminal transitions are guarded so exactly one applies.
func (p *Pipeline) run(ctx context.Context, task *database.ConversionTask, kind engine.Kind, artifacts []*database.Artifact, opts interface{}, bag map[string]interface{}) {
	type outcome struct {
		res *engine.Result
		err error
	}
	done := make(chan outcome, 1)

	go func() {
		work, err := security.NewWorkDir("convert")
		if err != nil {
			done <- outcome{err: fmt.Errorf("%w: %w", ErrStorage, err)}
			return
		}
		defer work.Cleanup()

		inputs, err := p.materialize(ctx, work, artifacts)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		res, err := p.engine.Convert(ctx, kind, inputs, opts)
		done <- outcome{res: res, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			p.fail(task, out.err)
			return
		}
		p.complete(ctx, task, out.res, bag)
	case <-time.After(p.timeout):
		p.fail(task, fmt.Errorf("%w: exceeded %s", ErrTimeout, p.timeout))
	case <-ctx.Done():
		p.fail(task, fmt.Errorf("%w: %w", ErrTimeout, ctx.Err()))
	}
}

// materialize stages artifact blobs into the scratch directory.
func (p *Pipeline) materialize(ctx context.Context, work *security.WorkDir, artifacts []*database.Artifact) ([]engine.Input, error) {
	inputs := make([]engine.Input, len(artifacts))
	for i, artifact := range artifacts {
		rc, err := p.store.Get(ctx, artifact.StorageKey)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", engine.ErrInputNotFound, artifact.OriginalFilename)
		}
		path := work.Join(fmt.Sprintf("in_%d%s", i, filepath.Ext(artifact.StorageKey)))
		f, err := os.Create(path)
		if err != nil {
			rc.Close()
			return nil, fmt.Errorf("%w: staging input: %w", ErrStorage, err)
		}
		_, err = io.Copy(f, rc)
		rc.Close()
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: staging input: %w", ErrStorage, err)
		}
		inputs[i] = engine.Input{
			Path:         path,
			OriginalName: artifact.OriginalFilename,
			Size:         artifact.SizeBytes,
		}
	}
	return inputs, nil
}

func (p *Pipeline) complete(ctx context.Context, task *database.ConversionTask, res *engine.Result, bag map[string]interface{}) {
	outputKey := storage.ConvertedKey(task.ID, filepath.Ext(res.Filename))
	if err := p.store.Put(ctx, outputKey, bytes.NewReader(res.Bytes)); err != nil {
		p.fail(task, fmt.Errorf("%w: storing output: %w", ErrStorage, err))
		return
	}

	// Result metadata extends the recorded option bag at the moment of the
	// completed transition.
	merged := make(map[string]interface{}, len(bag)+len(res.Meta))
	for k, v := range bag {
		merged[k] = v
	}
	for k, v := range res.Meta {
		merged[k] = v
	}
	record := &database.ConversionTask{}
	if err := record.SetOptions(merged); err != nil {
		logging.Logf("[TASK] %s: failed to encode result metadata: %v", task.ID, err)
		record.Options = task.Options
	}

	applied, err := database.MarkCompleted(p.db, task.ID, outputKey, res.Filename, int64(len(res.Bytes)), record.Options)
	if err != nil {
		logging.Logf("[TASK] %s: failed to record completion: %v", task.ID, err)
		return
	}
	if !applied {
		// The task already timed out; drop the late output.
		if err := p.store.Delete(ctx, outputKey); err != nil {
			logging.Logf("[TASK] %s: failed to delete late output %s: %v", task.ID, outputKey, err)
		}
		return
	}
	logging.Logf("[TASK] %s: %s completed (%s, %d bytes)", task.ID, task.Kind, res.Filename, len(res.Bytes))
}

func (p *Pipeline) fail(task *database.ConversionTask, convErr error) {
	kind := errorKind(convErr)
	applied, err := database.MarkFailed(p.db, task.ID, kind, userMessage(convErr))
	if err != nil {
		logging.Logf("[TASK] %s: failed to record failure: %v", task.ID, err)
		return
	}
	if applied {
		// Full detail stays server-side.
		logging.Logf("[TASK] %s: %s failed (%s): %v", task.ID, task.Kind, kind, convErr)
	}
}

// errorKind maps an error to its taxonomy name for the task record.
func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "Timeout"
	case errors.Is(err, engine.ErrInputNotFound):
		return "InputNotFound"
	case errors.Is(err, engine.ErrUnsupportedOption):
		return "UnsupportedOption"
	case errors.Is(err, ErrStorage):
		return "StorageError"
	default:
		return "ConversionFailed"
	}
}

// userMessage is the sanitized failure notice surfaced to callers.
func userMessage(err error) string {
	switch errorKind(err) {
	case "Timeout":
		return "The conversion took too long and was cancelled."
	case "InputNotFound":
		return "An input file could not be found."
	case "UnsupportedOption":
		return "One of the requested options is not supported."
	case "StorageError":
		return "A storage problem interrupted the conversion."
	default:
		return "The conversion failed. The file may be corrupted or unsupported."
	}
}

// Download returns the completed output of a task.
func (p *Pipeline) Download(ctx context.Context, clientID string, taskID uuid.UUID) (io.ReadCloser, string, error) {
	if err := p.limiter.Allow(ctx, clientID, ratelimit.ActionDownload); err != nil {
		return nil, "", err
	}

	task, err := database.GetTask(p.db, taskID)
	if err != nil {
		return nil, "", err
	}
	if task.Status != database.StatusCompleted || task.OutputKey == "" {
		return nil, "", ErrNoOutput
	}
	if task.ClientID != "" && task.ClientID != clientID {
		// Logged for audit, not rejected.
		logging.Logf("[TASK] %s: downloaded by %s, created by %s", task.ID, clientID, task.ClientID)
	}

	rc, err := p.store.Get(ctx, task.OutputKey)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return rc, task.OutputFilename, nil
}

// Task fetches a task record.
func (p *Pipeline) Task(id uuid.UUID) (*database.ConversionTask, error) {
	return database.GetTask(p.db, id)
}
