package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/rs/zerolog"

	"photoflow/internal/ids"
	"photoflow/internal/media/sniffer"
	"photoflow/internal/models"
	"photoflow/internal/repository"
)

var (
	ErrEmptyFile       = errors.New("empty file")
	ErrUnsupportedType = errors.New("unsupported media type")
	ErrUnknownPhoto    = errors.New("unknown photo id")
)

// RetryableError reports a failed upload attempt along with how much retry
// budget the photo has left. The handler surfaces it verbatim to the client.
type RetryableError struct {
	ID         string
	RetryCount int
	CanRetry   bool
	Err        error
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("upload failed (attempt %d): %v", e.RetryCount, e.Err)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

type UploadInput struct {
	File   multipart.File
	Header *multipart.FileHeader
	// PhotoID, when set, marks a retry of a previously failed upload and
	// reuses that photo's record and retry budget.
	PhotoID string
}

type UploadResult struct {
	ID   string `json:"id"`
	URL  string `json:"url"`
	Name string `json:"name"`
}

// PhotoStore is the slice of the repository the upload path needs.
type PhotoStore interface {
	Create(ctx context.Context, id, name, url string) error
	GetByID(ctx context.Context, id string) (models.Photo, error)
	Update(ctx context.Context, id string, upd models.PhotoUpdate) error
}

// BlobStore stores the uploaded bytes and returns their public URL.
type BlobStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
}

// Starter kicks off simulated processing for a freshly queued photo.
type Starter interface {
	Start(ctx context.Context, photoID string) error
}

type UploadService struct {
	photos     PhotoStore
	store      BlobStore
	sim        Starter
	maxRetries int
	log        zerolog.Logger
}

func NewUploadService(photos PhotoStore, store BlobStore, sim Starter, maxRetries int, log zerolog.Logger) *UploadService {
	return &UploadService{
		photos:     photos,
		store:      store,
		sim:        sim,
		maxRetries: maxRetries,
		log:        log,
	}
}

// Upload validates and stores one photo, records it as queued, and kicks off
// simulated processing. Storage faults are tracked against the photo's retry
// budget and returned as a *RetryableError.
func (s *UploadService) Upload(ctx context.Context, input UploadInput) (UploadResult, error) {
	if input.File == nil || input.Header == nil {
		return UploadResult{}, errors.New("invalid file payload")
	}

	data, err := readAll(input.File)
	if err != nil {
		return UploadResult{}, err
	}
	if len(data) == 0 {
		return UploadResult{}, ErrEmptyFile
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	result, err := sniffer.DetectHead(head)
	if err != nil {
		return UploadResult{}, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}
	if declared := sniffer.MimeTypeFromHTTP(http.Header(input.Header.Header)); declared != "" && declared != result.MIME {
		return UploadResult{}, fmt.Errorf("%w: declared %s, actual %s", ErrUnsupportedType, declared, result.MIME)
	}

	photoID := input.PhotoID
	retryCount := 0
	retrying := photoID != ""
	if retrying {
		photo, err := s.photos.GetByID(ctx, photoID)
		if err != nil {
			if errors.Is(err, repository.ErrPhotoNotFound) {
				return UploadResult{}, ErrUnknownPhoto
			}
			return UploadResult{}, err
		}
		retryCount = photo.RetryCount
		if retryCount >= s.maxRetries {
			return UploadResult{}, &RetryableError{
				ID:         photoID,
				RetryCount: retryCount,
				CanRetry:   false,
				Err:        errors.New("upload retry limit reached"),
			}
		}
	} else {
		photoID = ids.New()
	}

	name := input.Header.Filename
	key := ObjectKey(photoID, name)

	url, err := s.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), result.MIME)
	if err != nil {
		return UploadResult{}, s.recordFailure(ctx, photoID, name, retryCount, retrying, err)
	}

	if retrying {
		err = s.photos.Update(ctx, photoID, models.PhotoUpdate{
			Status:     statusPtr(models.PhotoStatusQueued),
			Progress:   intPtr(0),
			ClearError: true,
			Logs:       []models.LogEntry{},
			URL:        &url,
		})
	} else {
		err = s.photos.Create(ctx, photoID, name, url)
	}
	if err != nil {
		return UploadResult{}, fmt.Errorf("save photo record: %w", err)
	}

	if err := s.sim.Start(ctx, photoID); err != nil {
		return UploadResult{}, fmt.Errorf("start processing: %w", err)
	}

	s.log.Info().
		Str("photo_id", photoID).
		Str("name", name).
		Int("size_bytes", len(data)).
		Bool("retry", retrying).
		Msg("photo uploaded")

	return UploadResult{ID: photoID, URL: url, Name: name}, nil
}

// recordFailure persists a failed upload attempt and wraps the cause in a
// RetryableError carrying the remaining budget.
func (s *UploadService) recordFailure(ctx context.Context, photoID, name string, retryCount int, retrying bool, cause error) error {
	if !retrying {
		if err := s.photos.Create(ctx, photoID, name, ""); err != nil {
			s.log.Error().Err(err).Str("photo_id", photoID).Msg("record failed upload")
			return fmt.Errorf("store photo: %w", cause)
		}
	}

	newCount := retryCount + 1
	errMsg := fmt.Sprintf("Upload failed: %v", cause)
	if err := s.photos.Update(ctx, photoID, models.PhotoUpdate{
		Status:     statusPtr(models.PhotoStatusFailed),
		Error:      &errMsg,
		RetryCount: intPtr(newCount),
	}); err != nil {
		s.log.Error().Err(err).Str("photo_id", photoID).Msg("record failed upload")
	}

	return &RetryableError{
		ID:         photoID,
		RetryCount: newCount,
		CanRetry:   newCount < s.maxRetries,
		Err:        cause,
	}
}

// ObjectKey derives the blob key for a photo; deletion rebuilds it from the
// persisted record.
func ObjectKey(photoID, name string) string {
	return fmt.Sprintf("%s-%s", photoID, name)
}

func readAll(file multipart.File) ([]byte, error) {
	if seeker, ok := file.(io.ReadSeeker); ok {
		if _, err := seeker.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("rewind: %w", err)
		}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func statusPtr(s models.PhotoStatus) *models.PhotoStatus { return &s }

func intPtr(v int) *int { return &v }
