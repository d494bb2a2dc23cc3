package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/docmill/docmill/internal/database"
	"github.com/docmill/docmill/internal/engine"
	"github.com/docmill/docmill/internal/logging"
	"github.com/docmill/docmill/internal/ratelimit"
	"github.com/docmill/docmill/internal/security"
	"github.com/docmill/docmill/internal/task"
)

// maxMultipartMemory caps how much of a parsed form is held in memory;
// larger files spill to disk.
const maxMultipartMemory = 32 << 20

var titleCaser = cases.Title(language.English)

// Server exposes the conversion pipeline over HTTP.
type Server struct {
	pipeline *task.Pipeline
}

// NewRouter builds the gin engine with all API routes registered.
func NewRouter(pipeline *task.Pipeline) *gin.Engine {
	s := &Server{pipeline: pipeline}

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.MaxMultipartMemory = maxMultipartMemory

	router.GET("/api/health", s.healthHandler)
	router.POST("/api/upload", s.uploadHandler)
	router.POST("/api/convert/:kind", s.convertHandler)
	router.GET("/api/tasks/:id", s.taskHandler)
	router.GET("/api/download/:id", s.downloadHandler)

	return router
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// uploadHandler validates and stores a single "file" field.
func (s *Server) uploadHandler(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file in request"})
		return
	}

	upload, closeFn, err := openUpload(fileHeader)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer closeFn()

	artifact, res, err := s.pipeline.UploadOne(c.Request.Context(), c.ClientIP(), upload)
	if err != nil {
		s.writeError(c, err, res)
		return
	}
	c.JSON(http.StatusCreated, artifactJSON(artifact))
}

// convertHandler runs one conversion in a single request: multipart "files"
// are validated and stored, then converted with the remaining form fields as
// options. The response carries the terminal task state.
func (s *Server) convertHandler(c *gin.Context) {
	kind, err := engine.ParseKind(c.Param("kind"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not parse multipart form"})
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no files in request"})
		return
	}

	bag := optionBag(form.Value)
	// Audit trail: requester identity rides along in the option bag.
	bag["client_ip"] = c.ClientIP()
	if ua := c.Request.UserAgent(); ua != "" {
		bag["user_agent"] = ua
	}
	logOptions(kind, bag)

	uploads := make([]task.UploadFile, 0, len(headers))
	for _, h := range headers {
		upload, closeFn, err := openUpload(h)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not read uploaded file"})
			return
		}
		defer closeFn()
		uploads = append(uploads, upload)
	}

	artifacts, err := s.pipeline.UploadBatch(c.Request.Context(), c.ClientIP(), kind, uploads)
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	inputIDs := make([]uuid.UUID, len(artifacts))
	for i, a := range artifacts {
		inputIDs[i] = a.ID
	}

	converted, err := s.pipeline.Convert(c.Request.Context(), c.ClientIP(), kind, inputIDs, bag)
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, taskJSON(converted))
}

func (s *Server) taskHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}
	record, err := s.pipeline.Task(id)
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	c.JSON(http.StatusOK, taskJSON(record))
}

func (s *Server) downloadHandler(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid task id"})
		return
	}

	rc, filename, err := s.pipeline.Download(c.Request.Context(), c.ClientIP(), id)
	if err != nil {
		s.writeError(c, err, nil)
		return
	}
	defer rc.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, rc); err != nil {
		logging.Logf("[SERVER] Failed to stream %s: %v", filename, err)
	}
}

// writeError maps pipeline errors to HTTP responses. Internal detail is
// logged, never returned.
func (s *Server) writeError(c *gin.Context, err error, res *security.CheckResult) {
	switch {
	case errors.Is(err, ratelimit.ErrRateLimited):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrValidationFailed):
		body := gin.H{"error": err.Error()}
		if res != nil && len(res.Reasons) > 0 {
			body["reasons"] = res.Reasons
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, engine.ErrUnsupportedOption):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, database.ErrArtifactNotFound), errors.Is(err, database.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, task.ErrNoOutput):
		c.JSON(http.StatusConflict, gin.H{"error": "task has no downloadable output"})
	default:
		logging.Logf("[SERVER] Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// openUpload opens a multipart file for the pipeline. Multipart files are
// seekable whether they were buffered in memory or spilled to disk.
func openUpload(h *multipart.FileHeader) (task.UploadFile, func(), error) {
	f, err := h.Open()
	if err != nil {
		return task.UploadFile{}, nil, err
	}
	return task.UploadFile{
		Name:   h.Filename,
		Reader: f,
		Size:   h.Size,
	}, func() { f.Close() }, nil
}

// optionBag flattens single-valued form fields into a conversion option bag.
func optionBag(values map[string][]string) map[string]interface{} {
	bag := make(map[string]interface{}, len(values))
	for key, vals := range values {
		if len(vals) > 0 {
			bag[key] = vals[0]
		}
	}
	return bag
}

// logOptions logs requested options in "Human Key: value" form.
func logOptions(kind engine.Kind, bag map[string]interface{}) {
	logging.Logf("[SERVER] Conversion requested: %s", kind)
	for key, val := range bag {
		humanKey := titleCaser.String(strings.ReplaceAll(key, "_", " "))
		logging.Logf("[SERVER] %s: %v", humanKey, val)
	}
}

func artifactJSON(a *database.Artifact) gin.H {
	return gin.H{
		"id":         a.ID,
		"filename":   a.OriginalFilename,
		"category":   a.Category,
		"mime_type":  a.MimeType,
		"sha256":     a.SHA256,
		"size_bytes": a.SizeBytes,
		"created_at": a.CreatedAt,
	}
}

func taskJSON(t *database.ConversionTask) gin.H {
	body := gin.H{
		"id":         t.ID,
		"kind":       t.Kind,
		"status":     t.Status,
		"created_at": t.CreatedAt,
	}
	if t.StartedAt != nil {
		body["started_at"] = t.StartedAt
	}
	if t.CompletedAt != nil {
		body["completed_at"] = t.CompletedAt
	}
	if t.Status == database.StatusCompleted {
		body["output_filename"] = t.OutputFilename
		body["output_size"] = t.OutputSize
		if opts, err := t.OptionBag(); err == nil {
			body["result"] = opts
		}
	}
	if t.Status == database.StatusFailed {
		body["error_kind"] = t.ErrorKind
		body["error"] = t.ErrorMessage
	}
	return body
}
