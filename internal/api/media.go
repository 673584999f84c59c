package api

import (
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	"github.com/npezzotti/go-messenger/internal/database"
	"github.com/npezzotti/go-messenger/internal/types"

	// register webp decoding for thumbnail generation
	_ "golang.org/x/image/webp"
)

const (
	maxUploadBytes = 50 << 20

	thumbnailWidth  = 320
	thumbnailSuffix = "_thumb.jpg"
)

// allowedMediaTypes maps accepted content types to the stored media kind.
var allowedMediaTypes = map[string]types.MediaKind{
	"image/jpeg":      types.MediaKindImage,
	"image/png":       types.MediaKindImage,
	"image/gif":       types.MediaKindImage,
	"image/webp":      types.MediaKindImage,
	"video/mp4":       types.MediaKindVideo,
	"video/avi":       types.MediaKindVideo,
	"video/quicktime": types.MediaKindVideo,
	"video/x-ms-wmv":  types.MediaKindVideo,
}

// uploadMedia stores a multipart file under an opaque generated name and
// records it unattached. Image uploads also get a downscaled thumbnail.
// The media row is bound to a message later, at send time.
func (s *MessengerApp) uploadMedia(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		var maxErr *http.MaxBytesError
		var errResp *ApiError
		if errors.As(err, &maxErr) {
			errResp = NewPayloadTooLargeError()
		} else {
			errResp = NewBadRequestError()
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	kind, ok := allowedMediaTypes[contentType]
	if !ok {
		errResp := NewUnsupportedMediaTypeError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	sid, err := s.generateShortId()
	if err != nil {
		s.log.Print("generateShortId:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	storedName := sid + filepath.Ext(header.Filename)
	diskPath := filepath.Join(s.uploadDir, storedName)

	dst, err := os.Create(diskPath)
	if err != nil {
		s.log.Println("create upload file:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	size, err := io.Copy(dst, file)
	dst.Close()
	if err != nil {
		os.Remove(diskPath)
		s.log.Println("write upload file:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	var thumbnailPath string
	if kind == types.MediaKindImage {
		thumbName := sid + thumbnailSuffix
		if err := s.writeThumbnail(diskPath, filepath.Join(s.uploadDir, thumbName)); err != nil {
			// the full image is still usable without one
			s.log.Println("write thumbnail:", err)
		} else {
			thumbnailPath = "/uploads/" + thumbName
		}
	}

	media, err := s.db.CreateMedia(database.CreateMediaParams{
		FileName:      header.Filename,
		StoredPath:    "/uploads/" + storedName,
		ThumbnailPath: thumbnailPath,
		ContentType:   contentType,
		SizeBytes:     size,
		Kind:          string(kind),
		UploaderId:    userId,
	})
	if err != nil {
		os.Remove(diskPath)
		s.log.Println("create media:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusCreated, mediaResponse(media))
}

func (s *MessengerApp) writeThumbnail(srcPath, dstPath string) error {
	img, err := imaging.Open(srcPath)
	if err != nil {
		return err
	}

	thumb := imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	return imaging.Save(thumb, dstPath, imaging.JPEGQuality(80))
}

func (s *MessengerApp) getMedia(w http.ResponseWriter, r *http.Request) {
	if _, ok := UserId(r.Context()); !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	mediaId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	media, err := s.db.GetMediaById(mediaId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	s.writeJson(w, http.StatusOK, mediaResponse(media))
}

// deleteMedia removes the stored files and the row. Only the uploader may
// delete their media.
func (s *MessengerApp) deleteMedia(w http.ResponseWriter, r *http.Request) {
	userId, ok := UserId(r.Context())
	if !ok {
		errResp := NewUnauthorizedError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	mediaId, err := pathId(r, "id")
	if err != nil {
		errResp := NewBadRequestError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	media, err := s.db.GetMediaById(mediaId)
	if err != nil {
		var errResp *ApiError
		if errors.Is(err, sql.ErrNoRows) {
			errResp = NewNotFoundError()
		} else {
			errResp = NewInternalServerError(err)
		}
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if media.UploaderId != userId {
		errResp := NewForbiddenError()
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	if err := s.db.DeleteMedia(media.Id); err != nil {
		s.log.Println("delete media:", err)
		errResp := NewInternalServerError(err)
		s.writeJson(w, errResp.StatusCode, errResp)
		return
	}

	for _, p := range []string{media.StoredPath, media.ThumbnailPath} {
		if p == "" {
			continue
		}
		if err := os.Remove(filepath.Join(s.uploadDir, filepath.Base(p))); err != nil && !os.IsNotExist(err) {
			s.log.Println("remove media file:", err)
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

func mediaResponse(m database.Media) types.Media {
	return types.Media{
		Id:           m.Id,
		FileName:     m.FileName,
		Url:          m.StoredPath,
		ThumbnailUrl: m.ThumbnailPath,
		ContentType:  m.ContentType,
		Size:         m.SizeBytes,
		Kind:         types.MediaKind(m.Kind),
		UploaderId:   m.UploaderId,
		UploaderName: m.UploaderName,
		UploadedAt:   m.UploadedAt,
	}
}
