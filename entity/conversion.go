package entity

import (
	"context"
	"io"
	"path"
	"strings"
)

const (
	// InputPrefix is the ephemeral namespace of uploaded files. Never exposed.
	InputPrefix = "uploads/"
	// OutputPrefix is the namespace of converted files.
	OutputPrefix = "converted/"
	// OutputExt is the extension of every converted file.
	OutputExt = "oga"
	// OutputContentType is stored with every converted file.
	OutputContentType = "audio/ogg"
)

// AllowedExtensions lists accepted source extensions, without the dot.
var AllowedExtensions = []string{"mov", "mp4", "mp3", "wav", "m4a", "ogg", "webm"}

// NormalizeExtension returns the lower-cased extension of filename without the dot.
func NormalizeExtension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(filename)), ".")
}

// IsAllowedExtension reports whether ext (normalized) is accepted.
func IsAllowedExtension(ext string) bool {
	for _, a := range AllowedExtensions {
		if ext == a {
			return true
		}
	}
	return false
}

// InputKey -.
func InputKey(jobID, ext string) string {
	return InputPrefix + jobID + "." + ext
}

// OutputName is the public file name of a job's output.
func OutputName(jobID string) string {
	return jobID + "." + OutputExt
}

// OutputKey -.
func OutputKey(jobID string) string {
	return OutputPrefix + OutputName(jobID)
}

// AuthorizationDecision is produced by the authentication collaborator.
type AuthorizationDecision int

const (
	Allowed AuthorizationDecision = iota
	Unauthenticated
	Forbidden
)

// UploadRequest is a file received from a client.
type UploadRequest struct {
	Filename string
	Size     int64
	Body     io.Reader
}

// JobStatus -.
type JobStatus string

const (
	StatusReceived    JobStatus = "received"
	StatusTranscoding JobStatus = "transcoding"
	StatusStored      JobStatus = "stored"
	StatusFailed      JobStatus = "failed"
)

var nextStatuses = map[JobStatus][]JobStatus{
	StatusReceived:    {StatusTranscoding, StatusFailed},
	StatusTranscoding: {StatusStored, StatusFailed},
}

// ConversionJob is one conversion attempt. It lives for a single request.
type ConversionJob struct {
	ID              string
	SourceExtension string
	Status          JobStatus
	OutputKey       string
}

// NewConversionJob -.
func NewConversionJob(id, sourceExt string) *ConversionJob {
	return &ConversionJob{ID: id, SourceExtension: sourceExt, Status: StatusReceived}
}

// Advance moves the job forward. Stored and failed are terminal.
func (j *ConversionJob) Advance(to JobStatus) error {
	for _, s := range nextStatuses[j.Status] {
		if s == to {
			j.Status = to
			if to == StatusStored {
				j.OutputKey = OutputKey(j.ID)
			}
			return nil
		}
	}
	return ErrIllegalTransition
}

// ConversionResult is returned to the client after a successful conversion.
type ConversionResult struct {
	Success      bool   `json:"success"`
	DownloadURL  string `json:"download_url"`
	OutputName   string `json:"outputName"`
	OriginalName string `json:"originalName"`
}

// Download is a converted file ready to be streamed. Body must be closed.
type Download struct {
	Body     io.ReadCloser
	Size     int64
	MimeType string
	Filename string
}

// ConversionUsecase -.
type ConversionUsecase interface {
	Convert(ctx context.Context, upload UploadRequest, authz AuthorizationDecision) (*ConversionResult, error)
}

// DownloadUsecase -.
type DownloadUsecase interface {
	Fetch(ctx context.Context, filename string) (*Download, error)
}
