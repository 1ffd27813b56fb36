package conversion

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"waveconv/entity"
	"waveconv/internal/telemetry/metric"
	"waveconv/pkg/logger"
)

const traceName = "Conversion-Usecase"

const msgEmptyUpload = "no file provided or file is empty"

// errOutputAbandoned stops a transcoder that is still writing after the
// output store gave up reading.
var errOutputAbandoned = errors.New("output stream abandoned")

// Options -.
type Options struct {
	// MaxUploadSize is inclusive.
	MaxUploadSize int64
	// PublicBaseURL prefixes the download route in results.
	PublicBaseURL string
}

// ConversionUsecase turns one upload into one stored voice file.
type ConversionUsecase struct {
	store      entity.ArtifactStore
	transcoder entity.Transcoder
	l          logger.Interface
	m          *metric.Metrics
	opts       Options
}

var _ entity.ConversionUsecase = (*ConversionUsecase)(nil)

// NewConversionUsecase -. m may be nil.
func NewConversionUsecase(store entity.ArtifactStore, tc entity.Transcoder, l logger.Interface, m *metric.Metrics, opts Options) *ConversionUsecase {
	return &ConversionUsecase{store: store, transcoder: tc, l: l, m: m, opts: opts}
}

// Convert validates the upload, stores it, transcodes it into the output
// namespace and returns where the result can be fetched. The input is always
// removed before returning; a failed job leaves no output behind.
func (uc *ConversionUsecase) Convert(ctx context.Context, upload entity.UploadRequest, authz entity.AuthorizationDecision) (result *entity.ConversionResult, err error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Convert")
	defer span.End()

	start := time.Now()
	defer func() {
		uc.m.RecordConversion(Outcome(err), time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, Outcome(err))
		}
	}()

	switch authz {
	case entity.Allowed:
	case entity.Forbidden:
		return nil, entity.ErrForbidden
	default:
		return nil, entity.ErrUnauthorized
	}

	if upload.Body == nil || upload.Size == 0 {
		return nil, entity.NewValidationError(msgEmptyUpload)
	}
	if upload.Size > uc.opts.MaxUploadSize {
		return nil, uc.tooLarge()
	}

	ext := entity.NormalizeExtension(upload.Filename)
	if !entity.IsAllowedExtension(ext) {
		return nil, entity.NewValidationError("unsupported file type: allowed types are %s", allowedList())
	}

	job := entity.NewConversionJob(uuid.New().String(), ext)
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.source_ext", ext),
	)
	uc.l.Info("conversion - Convert - job %s: received %q (%d bytes)", job.ID, upload.Filename, upload.Size)

	// cleanup must survive a client that went away mid-request
	cleanupCtx := context.WithoutCancel(ctx)

	inputKey := entity.InputKey(job.ID, ext)
	defer uc.discard(cleanupCtx, job, inputKey)

	if err := uc.storeInput(ctx, job, inputKey, upload.Body); err != nil {
		uc.fail(job, err)
		return nil, err
	}

	if err := uc.transcode(ctx, cleanupCtx, job, inputKey); err != nil {
		uc.fail(job, err)
		return nil, err
	}

	res := &entity.ConversionResult{
		Success:      true,
		DownloadURL:  uc.downloadURL(ctx, job),
		OutputName:   entity.OutputName(job.ID),
		OriginalName: upload.Filename,
	}
	uc.l.Info("conversion - Convert - job %s: stored %s", job.ID, job.OutputKey)

	return res, nil
}

func (uc *ConversionUsecase) storeInput(ctx context.Context, job *entity.ConversionJob, key string, body io.Reader) error {
	ctx, span := otel.Tracer(traceName).Start(ctx, "StoreInput")
	defer span.End()

	// one extra byte tells an over-limit body from one exactly at the limit
	ref, err := uc.store.Put(ctx, key, io.LimitReader(body, uc.opts.MaxUploadSize+1), "")
	if err != nil {
		return &entity.StorageError{Op: "save upload", Err: err}
	}
	span.SetAttributes(attribute.Int64("input.size", ref.Size))

	switch {
	case ref.Size == 0:
		return entity.NewValidationError(msgEmptyUpload)
	case ref.Size > uc.opts.MaxUploadSize:
		return uc.tooLarge()
	}

	uc.m.RecordUpload(ref.Size)
	uc.l.Debug("conversion - storeInput - job %s: saved %d bytes", job.ID, ref.Size)
	return nil
}

// transcode pipes the transcoder's output straight into the store.
func (uc *ConversionUsecase) transcode(ctx, cleanupCtx context.Context, job *entity.ConversionJob, inputKey string) error {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Transcode")
	defer span.End()

	if err := job.Advance(entity.StatusTranscoding); err != nil {
		return err
	}

	in, err := uc.store.Get(ctx, inputKey)
	if err != nil {
		return &entity.StorageError{Op: "read upload", Err: err}
	}
	defer in.Body.Close()

	outputKey := entity.OutputKey(job.ID)
	pr, pw := io.Pipe()
	sink := &sinkWriter{w: pw}

	started := time.Now()
	transcodeDone := make(chan error, 1)
	go func() {
		err := uc.transcoder.Transcode(ctx, in.Body, job.SourceExtension, sink)
		pw.CloseWithError(err)
		transcodeDone <- err
	}()

	ref, putErr := uc.store.Put(ctx, outputKey, pr, entity.OutputContentType)
	pr.CloseWithError(errOutputAbandoned)
	transcodeErr := <-transcodeDone

	uc.m.RecordTranscode(time.Since(started))

	// A transcoder that failed only because the store stopped reading is not
	// the root cause.
	if transcodeErr != nil && (putErr == nil || !sink.failed()) {
		uc.discard(cleanupCtx, job, outputKey)
		return asTranscodeError(transcodeErr)
	}
	if putErr != nil {
		uc.discard(cleanupCtx, job, outputKey)
		return &entity.StorageError{Op: "save output", Err: putErr}
	}

	span.SetAttributes(attribute.Int64("output.size", ref.Size))
	return job.Advance(entity.StatusStored)
}

func (uc *ConversionUsecase) downloadURL(ctx context.Context, job *entity.ConversionJob) string {
	u, err := uc.store.PublicURL(ctx, job.OutputKey)
	if err != nil {
		uc.l.Warn("conversion - downloadURL - job %s: public url unavailable: %v", job.ID, err)
	}
	if err == nil && u != "" {
		return u
	}
	return strings.TrimSuffix(uc.opts.PublicBaseURL, "/") + "/download/" + entity.OutputName(job.ID)
}

func (uc *ConversionUsecase) fail(job *entity.ConversionJob, err error) {
	if advErr := job.Advance(entity.StatusFailed); advErr != nil {
		uc.l.Error(advErr, "conversion - fail - job %s", job.ID)
	}
	uc.l.Warn("conversion - Convert - job %s failed: %v", job.ID, err)
}

func (uc *ConversionUsecase) discard(ctx context.Context, job *entity.ConversionJob, key string) {
	if err := uc.store.Delete(ctx, key); err != nil {
		uc.l.Error(err, "conversion - discard - job %s: could not delete %s", job.ID, key)
	}
}

func (uc *ConversionUsecase) tooLarge() error {
	return entity.NewValidationError("file is too large: maximum size is %d MB", uc.opts.MaxUploadSize/(1024*1024))
}

func allowedList() string {
	exts := make([]string, len(entity.AllowedExtensions))
	for i, e := range entity.AllowedExtensions {
		exts[i] = "." + e
	}
	return strings.Join(exts, ", ")
}

func asTranscodeError(err error) error {
	var te *entity.TranscodeError
	if errors.As(err, &te) {
		return te
	}
	return &entity.TranscodeError{Kind: entity.EncodingFailed, Reason: err.Error()}
}

// Outcome is the metric label for a Convert result.
func Outcome(err error) string {
	var (
		ve *entity.ValidationError
		te *entity.TranscodeError
		se *entity.StorageError
	)
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, entity.ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, entity.ErrForbidden):
		return "forbidden"
	case errors.As(err, &ve):
		return "invalid_request"
	case errors.As(err, &te):
		return string(te.Kind)
	case errors.As(err, &se):
		return "storage_error"
	default:
		return "error"
	}
}

// sinkWriter remembers whether a write to the output pipe ever failed.
type sinkWriter struct {
	w      io.Writer
	broken atomic.Bool
}

func (s *sinkWriter) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		s.broken.Store(true)
	}
	return n, err
}

func (s *sinkWriter) failed() bool {
	return s.broken.Load()
}
