package download

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"waveconv/entity"
	"waveconv/internal/telemetry/metric"
	"waveconv/pkg/logger"
)

const traceName = "Download-Responder"

const fallbackMimeType = "application/octet-stream"

var mimeTypes = map[string]string{
	".oga": "audio/ogg",
	".ogg": "audio/ogg",
}

// Responder serves converted files by their public name.
type Responder struct {
	store entity.ArtifactStore
	l     logger.Interface
	m     *metric.Metrics
}

var _ entity.DownloadUsecase = (*Responder)(nil)

func NewResponder(store entity.ArtifactStore, l logger.Interface, m *metric.Metrics) *Responder {
	return &Responder{store: store, l: l, m: m}
}

// Fetch opens the converted file called filename ("<uuid>.oga"). Any other
// name is reported as entity.ErrNotFound without consulting the store.
func (r *Responder) Fetch(ctx context.Context, filename string) (*entity.Download, error) {
	ctx, span := otel.Tracer(traceName).Start(ctx, "Fetch")
	defer span.End()
	span.SetAttributes(attribute.String("filename", filename))

	if !validName(filename) {
		r.m.RecordDownload("not_found")
		return nil, entity.ErrNotFound
	}

	a, err := r.store.Get(ctx, entity.OutputPrefix+filename)
	if errors.Is(err, entity.ErrNotFound) {
		r.m.RecordDownload("not_found")
		return nil, entity.ErrNotFound
	}
	if err != nil {
		r.m.RecordDownload("error")
		r.l.Error(err, "download - Fetch - %s", filename)
		return nil, fmt.Errorf("download - Fetch: could not open %s", filename)
	}

	r.m.RecordDownload("ok")
	return &entity.Download{
		Body:     a.Body,
		Size:     a.Size,
		MimeType: MimeType(filename),
		Filename: filename,
	}, nil
}

// MimeType derives the content type from the file extension.
func MimeType(filename string) string {
	if t, ok := mimeTypes[strings.ToLower(path.Ext(filename))]; ok {
		return t
	}
	return fallbackMimeType
}

func validName(filename string) bool {
	stem, ok := strings.CutSuffix(filename, "."+entity.OutputExt)
	if !ok {
		return false
	}
	id, err := uuid.Parse(stem)
	// uuid.Parse also accepts urn and braced forms
	return err == nil && id.String() == stem
}
