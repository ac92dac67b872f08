package services

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"lukechampine.com/blake3"

	"github.com/yoockh/scribe/internal/metrics"
	"github.com/yoockh/scribe/internal/models"
	"github.com/yoockh/scribe/internal/providers/stt"
	dbrepo "github.com/yoockh/scribe/internal/repositories/relational"
	"github.com/yoockh/scribe/internal/storage"
	"github.com/yoockh/scribe/internal/utils"
)

// TranscribeInput is one uploaded file. UserID 0 is a guest.
type TranscribeInput struct {
	UserID   uint
	Filename string
	Size     int64
	Body     io.Reader
}

// TranscribeOutput carries the text in both cases; Record is nil for guests.
type TranscribeOutput struct {
	Text     string
	Filename string
	Record   *models.Transcription
}

type TranscriptionOptions struct {
	MaxUploadBytes    int64
	KeepFailedUploads bool
	Language          string
}

type TranscriptionService interface {
	Transcribe(ctx context.Context, in TranscribeInput) (*TranscribeOutput, error)
	List(ctx context.Context, userID uint) ([]models.Transcription, error)
	Get(ctx context.Context, id, userID uint) (*models.Transcription, error)
	// OwnsFile reports whether a stored upload belongs to one of userID's transcriptions.
	OwnsFile(ctx context.Context, userID uint, filename string) (bool, error)
}

type transcriptionService struct {
	store    storage.Store
	provider stt.Provider
	repo     dbrepo.TranscriptionRepository
	metrics  *metrics.Metrics
	log      *logrus.Logger
	opts     TranscriptionOptions
}

func NewTranscriptionService(
	store storage.Store,
	provider stt.Provider,
	repo dbrepo.TranscriptionRepository,
	m *metrics.Metrics,
	log *logrus.Logger,
	opts TranscriptionOptions,
) TranscriptionService {
	return &transcriptionService{
		store:    store,
		provider: provider,
		repo:     repo,
		metrics:  m,
		log:      log,
		opts:     opts,
	}
}

func (s *transcriptionService) Transcribe(ctx context.Context, in TranscribeInput) (*TranscribeOutput, error) {
	const op = "TranscriptionService.Transcribe"

	if err := s.validate(in); err != nil {
		s.metrics.CountTranscription(s.provider.Name(), metrics.OutcomeRejected)
		return nil, utils.E(utils.CodeInvalidArgument, op, err.Error(), nil)
	}

	// one byte past the limit is enough to detect an oversized body
	hasher := blake3.New(32, nil)
	body := io.TeeReader(io.LimitReader(in.Body, s.opts.MaxUploadBytes+1), hasher)

	obj, err := s.store.Save(ctx, in.Filename, body)
	if err != nil {
		s.metrics.CountTranscription(s.provider.Name(), metrics.OutcomeStore)
		return nil, utils.E(utils.CodeInternal, op, "failed to save upload", err)
	}
	log := s.log.WithFields(logrus.Fields{
		"op":       op,
		"user_id":  in.UserID,
		"filename": obj.Name,
		"provider": s.provider.Name(),
	})

	switch {
	case obj.Size == 0:
		s.discard(ctx, log, obj.Name, true)
		s.metrics.CountTranscription(s.provider.Name(), metrics.OutcomeRejected)
		return nil, utils.E(utils.CodeInvalidArgument, op, "uploaded file is empty", nil)
	case obj.Size > s.opts.MaxUploadBytes:
		s.discard(ctx, log, obj.Name, true)
		s.metrics.CountTranscription(s.provider.Name(), metrics.OutcomeRejected)
		return nil, utils.E(utils.CodeInvalidArgument, op, tooLarge(s.opts.MaxUploadBytes), nil)
	}

	started := time.Now()
	res, err := s.runEngine(ctx, obj)
	elapsed := time.Since(started)
	s.metrics.ObserveEngine(s.provider.Name(), elapsed)
	if err != nil {
		log.WithError(err).Error("transcription failed")
		s.discard(ctx, log, obj.Name, false)
		s.metrics.CountTranscription(s.provider.Name(), metrics.OutcomeEngine)
		return nil, utils.E(utils.CodeExternal, op, "transcription failed", err)
	}

	out := &TranscribeOutput{Text: res.Text, Filename: obj.Name}
	if in.UserID == 0 {
		log.WithField("engine_ms", elapsed.Milliseconds()).Info("guest transcription done")
		s.metrics.CountTranscription(s.provider.Name(), metrics.OutcomeEphemeral)
		return out, nil
	}

	meta, err := json.Marshal(models.TranscriptionMetadata{
		Provider:     s.provider.Name(),
		Model:        s.provider.Model(),
		Language:     res.Language,
		Confidence:   res.Confidence,
		OriginalName: in.Filename,
		SizeBytes:    obj.Size,
		Blake3:       hex.EncodeToString(hasher.Sum(nil)),
		DurationMS:   res.Duration.Milliseconds(),
	})
	if err != nil {
		s.discard(ctx, log, obj.Name, false)
		return nil, utils.E(utils.CodeInternal, op, "failed to encode metadata", err)
	}

	userID := in.UserID
	row := &models.Transcription{
		UserID:    &userID,
		Filename:  obj.Name,
		Text:      res.Text,
		Metadata:  datatypes.JSON(meta),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, row); err != nil {
		log.WithError(err).Error("failed to persist transcription")
		s.discard(ctx, log, obj.Name, false)
		s.metrics.CountTranscription(s.provider.Name(), metrics.OutcomeStore)
		return nil, utils.E(utils.CodeInternal, op, "failed to save transcription", err)
	}

	log.WithFields(logrus.Fields{
		"transcription_id": row.ID,
		"engine_ms":        elapsed.Milliseconds(),
	}).Info("transcription saved")
	s.metrics.CountTranscription(s.provider.Name(), metrics.OutcomePersisted)
	out.Record = row
	return out, nil
}

func (s *transcriptionService) validate(in TranscribeInput) error {
	switch {
	case in.Body == nil || in.Filename == "":
		return errors.New("no audio file uploaded")
	case in.Size == 0:
		return errors.New("uploaded file is empty")
	case !IsAllowedAudio(in.Filename):
		return fmt.Errorf("unsupported file type, allowed: %s", allowedList())
	case in.Size > s.opts.MaxUploadBytes:
		return errors.New(tooLarge(s.opts.MaxUploadBytes))
	}
	return nil
}

func (s *transcriptionService) runEngine(ctx context.Context, obj *storage.Object) (*stt.Result, error) {
	rc, err := s.store.Open(ctx, obj.Name)
	if err != nil {
		return nil, fmt.Errorf("reopen upload: %w", err)
	}
	defer rc.Close()

	return s.provider.Transcribe(ctx, stt.Audio{
		Filename: obj.Name,
		Reader:   rc,
		Size:     rc.Size,
		Language: s.opts.Language,
	})
}

// discard removes a stored upload after a failure. Rejected uploads are
// always removed; engine and store failures honour KeepFailedUploads.
func (s *transcriptionService) discard(ctx context.Context, log *logrus.Entry, name string, rejected bool) {
	if !rejected && s.opts.KeepFailedUploads {
		log.Warn("keeping upload of failed transcription")
		return
	}
	// the request context may already be cancelled
	if err := s.store.Delete(context.WithoutCancel(ctx), name); err != nil {
		log.WithError(err).Warn("failed to remove upload")
	}
}

func (s *transcriptionService) List(ctx context.Context, userID uint) ([]models.Transcription, error) {
	const op = "TranscriptionService.List"

	if userID == 0 {
		return nil, utils.E(utils.CodeUnauthorized, op, "login required", nil)
	}
	rows, err := s.repo.ListByUser(ctx, userID, 0)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list transcriptions", err)
	}
	return rows, nil
}

func (s *transcriptionService) Get(ctx context.Context, id, userID uint) (*models.Transcription, error) {
	const op = "TranscriptionService.Get"

	if userID == 0 {
		return nil, utils.E(utils.CodeUnauthorized, op, "login required", nil)
	}
	row, err := s.repo.GetByIDForUser(ctx, id, userID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "transcription not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load transcription", err)
	}
	return row, nil
}

func (s *transcriptionService) OwnsFile(ctx context.Context, userID uint, filename string) (bool, error) {
	const op = "TranscriptionService.OwnsFile"

	if userID == 0 {
		return false, nil
	}
	ok, err := s.repo.ExistsByFilenameForUser(ctx, userID, filename)
	if err != nil {
		return false, utils.E(utils.CodeInternal, op, "failed to check file ownership", err)
	}
	return ok, nil
}

func tooLarge(max int64) string {
	return fmt.Sprintf("file too large, limit is %d MB", max>>20)
}
