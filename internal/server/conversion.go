package server

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/mrsinham/dicompixel/internal/audit"
	"github.com/mrsinham/dicompixel/internal/cache"
	"github.com/mrsinham/dicompixel/internal/convert"
	"github.com/mrsinham/dicompixel/internal/util"
	"github.com/rs/zerolog/log"
)

const (
	headerFiles     = "X-Conversion-Files"
	headerFailed    = "X-Conversion-Failed"
	headerRequestID = "X-Request-Id"
	headerCache     = "X-Cache"

	formField      = "files"
	uploadsDirName = ".uploads"
	maxMemory      = 32 << 20
)

var errBadUpload = errors.New("bad upload")

type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// CreateConversion converts the files uploaded in the "files" form field
// and answers with the single output file or the zip archive.
func (s *Server) CreateConversion(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	defer s.metrics.Track()()

	ctx := r.Context()
	requestID := chimiddleware.GetReqID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	rec := &audit.ConversionRecord{
		RequestID:  requestID,
		Mode:       "invalid",
		RemoteAddr: r.RemoteAddr,
		Stage:      convert.StageReceived.String(),
	}
	w.Header().Set(headerRequestID, rec.RequestID)
	logger := log.With().Str("request_id", rec.RequestID).Logger()

	mode, err := convert.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		s.fail(w, rec, start, http.StatusBadRequest, err)
		return
	}
	rec.Mode = mode.String()

	tags, err := util.ParseTagOverrides(r.URL.Query()["tag"])
	if err != nil {
		s.fail(w, rec, start, http.StatusBadRequest, err)
		return
	}

	if limit := s.cfg.Server.MaxUploadSize; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.fail(w, rec, start, status, fmt.Errorf("parse upload: %w", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File[formField]
	if len(headers) == 0 {
		s.fail(w, rec, start, http.StatusBadRequest, fmt.Errorf("no files uploaded in field %q", formField))
		return
	}
	rec.InputFiles = len(headers)

	uploadDir := filepath.Join(s.cfg.Output.Root, uploadsDirName, rec.RequestID)
	defer func() { _ = os.RemoveAll(uploadDir) }()

	digest, err := saveUploads(headers, uploadDir)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, errBadUpload) {
			status = http.StatusBadRequest
		}
		s.fail(w, rec, start, status, err)
		return
	}

	var key string
	if s.cache != nil && mode.FromDICOM() {
		key = cache.CacheKey(mode.String(), digest)
		entry, err := cache.GetEntry(ctx, s.cache, key)
		switch {
		case err == nil:
			s.metrics.CacheHit(true)
			logger.Debug().Str("key", key).Msg("serving cached conversion")
			rec.Status = audit.StatusCached
			rec.Stage = convert.StageDelivered.String()
			rec.OutputFiles = entry.Files
			rec.Archived = entry.Archived
			w.Header().Set(headerCache, "hit")
			writeEntry(w, entry, 0)
			s.finish(ctx, rec, start)
			return
		case errors.Is(err, cache.ErrCorruptEntry):
			logger.Warn().Err(err).Str("key", key).Msg("dropping corrupt cache entry")
			if err := s.cache.Delete(ctx, key); err != nil {
				logger.Warn().Err(err).Msg("cache delete failed")
			}
		case !errors.Is(err, cache.ErrCacheMiss):
			logger.Warn().Err(err).Msg("cache lookup failed")
		}
		s.metrics.CacheHit(false)
		w.Header().Set(headerCache, "miss")
	}

	opts := s.convertOpts
	opts.Logger = &logger
	opts.Tags = tags

	res, err := convert.Run(ctx, convert.Request{
		ID:         rec.RequestID,
		Mode:       mode,
		Input:      uploadDir,
		OutputRoot: s.cfg.Output.Root,
	}, opts)
	if err != nil {
		rec.Stage = convert.StageFailed.String()
		s.fail(w, rec, start, statusFor(err), err)
		return
	}
	defer func() { _ = os.RemoveAll(res.OutputDir) }()

	data, err := os.ReadFile(res.Path)
	if err != nil {
		s.fail(w, rec, start, http.StatusInternalServerError, fmt.Errorf("read result: %w", err))
		return
	}

	failed := len(res.Batch.Failed())
	entry := &cache.Entry{
		Name:     filepath.Base(res.Path),
		Archived: res.Archived,
		Files:    res.Batch.Succeeded(),
		Data:     data,
	}
	if key != "" && failed == 0 {
		if err := cache.SetEntry(ctx, s.cache, key, entry, s.cfg.Cache.TTL); err != nil {
			logger.Warn().Err(err).Msg("cache store failed")
		}
	}

	rec.Status = audit.StatusSuccess
	rec.Stage = res.Stage.String()
	rec.OutputFiles = entry.Files
	rec.FailedFiles = failed
	rec.Archived = res.Archived

	writeEntry(w, entry, failed)
	s.finish(ctx, rec, start)
}

// saveUploads writes every uploaded file into dir under its base name and
// returns a digest of the names and contents, independent of upload order.
func saveUploads(headers []*multipart.FileHeader, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create upload directory: %w", err)
	}

	named := make(map[string]*multipart.FileHeader, len(headers))
	names := make([]string, 0, len(headers))
	for _, fh := range headers {
		name := filepath.Base(fh.Filename)
		if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
			return "", fmt.Errorf("%w: file without a name", errBadUpload)
		}
		if _, dup := named[name]; dup {
			return "", fmt.Errorf("%w: %q uploaded twice", errBadUpload, name)
		}
		named[name] = fh
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		_, _ = io.WriteString(h, name)
		_, _ = h.Write([]byte{0})
		if err := saveUpload(named[name], filepath.Join(dir, name), h); err != nil {
			return "", err
		}
		_, _ = h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func saveUpload(fh *multipart.FileHeader, path string, digest io.Writer) error {
	src, err := fh.Open()
	if err != nil {
		return fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(io.MultiWriter(dst, digest), src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("store upload: %w", err)
	}
	return dst.Close()
}

func statusFor(err error) int {
	var decodeErr *util.DecodeError
	switch {
	case errors.Is(err, util.ErrUnsupportedExtension):
		return http.StatusUnsupportedMediaType
	case errors.As(err, &decodeErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func contentType(name string) string {
	switch {
	case util.IsPNGPath(name):
		return "image/png"
	case util.IsJPEGPath(name):
		return "image/jpeg"
	case util.IsDICOMPath(name):
		return "application/dicom"
	case filepath.Ext(name) == ".zip":
		return "application/zip"
	default:
		return "application/octet-stream"
	}
}

func writeEntry(w http.ResponseWriter, e *cache.Entry, failed int) {
	w.Header().Set("Content-Type", contentType(e.Name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", e.Name))
	w.Header().Set("Content-Length", strconv.Itoa(len(e.Data)))
	w.Header().Set(headerFiles, strconv.Itoa(e.Files))
	w.Header().Set(headerFailed, strconv.Itoa(failed))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(e.Data)
}

func (s *Server) fail(w http.ResponseWriter, rec *audit.ConversionRecord, start time.Time, status int, err error) {
	rec.Status = audit.StatusFailure
	rec.ErrorMessage = err.Error()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error(), RequestID: rec.RequestID})

	s.finish(context.Background(), rec, start)
}

// finish records metrics and the audit row. The audit write outlives a
// cancelled request.
func (s *Server) finish(ctx context.Context, rec *audit.ConversionRecord, start time.Time) {
	elapsed := time.Since(start)
	rec.Duration = elapsed.Milliseconds()

	s.metrics.ObserveRequest(rec.Mode, rec.Status, rec.OutputFiles, rec.FailedFiles, elapsed)

	if err := s.recorder.Record(context.WithoutCancel(ctx), rec); err != nil {
		log.Warn().Err(err).Str("request_id", rec.RequestID).Msg("Failed to store conversion record")
	}
}
