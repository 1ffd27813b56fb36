package v1

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"

	"waveconv/entity"
	"waveconv/internal/auth"
	"waveconv/pkg/logger"
)

// multipartSlack covers the multipart envelope around the file part.
const multipartSlack = 1 << 20

type conversionRoutes struct {
	cu          entity.ConversionUsecase
	authz       auth.Authorizer
	l           logger.Interface
	maxUpload   int64
	development bool
}

func newConversionRoutes(handler *gin.RouterGroup, deps Deps, l logger.Interface) {
	r := &conversionRoutes{
		cu:          deps.Conversion,
		authz:       deps.Authorizer,
		l:           l,
		maxUpload:   deps.MaxUploadSize,
		development: deps.Development,
	}

	handler.POST("/upload", r.upload)
	handler.GET("/download/:filename", newDownloadHandler(deps, l))
}

// @Summary     Convert a file to a voice message
// @Description Upload audio or video and get an Opus/Ogg voice file back
// @ID          upload
// @Tags        conversion
// @Accept      multipart/form-data
// @Produce     json
// @Param       file formData file true "mov, mp4, mp3, wav, m4a, ogg or webm"
// @Success     200 {object} entity.ConversionResult
// @Failure     400 {object} response
// @Failure     401 {object} response
// @Failure     403 {object} response
// @Failure     500 {object} response
// @Router      /upload [post]
func (r *conversionRoutes) upload(c *gin.Context) {
	ctx, span := otel.Tracer(traceName).Start(c.Request.Context(), "upload-api")
	defer span.End()

	decision := r.authz.Authorize(c.Request)
	if decision != entity.Allowed {
		// no need to read the body of a request that will be refused
		_, err := r.cu.Convert(ctx, entity.UploadRequest{}, decision)
		convertErrorResponse(c, err, r.development)
		return
	}

	limit := r.maxUpload + multipartSlack
	if c.Request.ContentLength > limit {
		errorResponse(c, http.StatusBadRequest, r.tooLargeMessage())
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	fh, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		switch {
		case errors.As(err, &mbe), strings.Contains(err.Error(), "request body too large"):
			errorResponse(c, http.StatusBadRequest, r.tooLargeMessage())
		default:
			r.l.Debug("http - v1 - upload - FormFile: %v", err)
			errorResponse(c, http.StatusBadRequest, "no file provided or file is empty")
		}
		return
	}

	f, err := fh.Open()
	if err != nil {
		r.l.Error(err, "http - v1 - upload - Open")
		errorResponse(c, http.StatusInternalServerError, msgStorage)
		return
	}
	defer f.Close()

	res, err := r.cu.Convert(ctx, entity.UploadRequest{Filename: fh.Filename, Size: fh.Size, Body: f}, decision)
	if err != nil {
		code, _, _ := mapConvertError(err)
		if code >= http.StatusInternalServerError {
			r.l.Error(err, "http - v1 - upload")
		}
		convertErrorResponse(c, err, r.development)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (r *conversionRoutes) tooLargeMessage() string {
	return fmt.Sprintf("file is too large: maximum size is %d MB", r.maxUpload/(1024*1024))
}

// @Summary     Download a converted file
// @Description Streams a converted voice file as an attachment
// @ID          download
// @Tags        conversion
// @Produce     audio/ogg
// @Param       filename path string true "name returned by upload, e.g. 2f1c...e9.oga"
// @Success     200 {file} binary
// @Failure     404 {string} string "file not found"
// @Failure     500 {string} string "could not retrieve file"
// @Router      /download/{filename} [get]
func newDownloadHandler(deps Deps, l logger.Interface) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := otel.Tracer(traceName).Start(c.Request.Context(), "download-api")
		defer span.End()

		d, err := deps.Download.Fetch(ctx, c.Param("filename"))
		if errors.Is(err, entity.ErrNotFound) {
			c.String(http.StatusNotFound, msgFileNotFound)
			return
		}
		if err != nil {
			l.Error(err, "http - v1 - download")
			c.String(http.StatusInternalServerError, msgRetrieveFailure)
			return
		}
		defer d.Body.Close()

		c.Header("Cache-Control", "no-cache")
		c.DataFromReader(http.StatusOK, d.Size, d.MimeType, d.Body, map[string]string{
			"Content-Disposition": "attachment; filename=" + strconv.Quote(d.Filename),
		})
	}
}
