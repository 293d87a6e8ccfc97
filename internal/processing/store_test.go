package processing

import (
	"context"
	"sort"
	"sync"

	"photoflow/internal/models"
	"photoflow/internal/repository"
)

// memStore is an in-memory PhotoStore that applies partial updates the way
// the SQL repository does.
type memStore struct {
	mu      sync.Mutex
	photos  map[string]models.Photo
	failGet error
	failUpd error
}

func newMemStore(photos ...models.Photo) *memStore {
	s := &memStore{photos: make(map[string]models.Photo)}
	for _, p := range photos {
		s.photos[p.ID] = p
	}
	return s
}

func (s *memStore) GetByID(_ context.Context, id string) (models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failGet != nil {
		return models.Photo{}, s.failGet
	}
	photo, ok := s.photos[id]
	if !ok {
		return models.Photo{}, repository.ErrPhotoNotFound
	}
	return photo, nil
}

func (s *memStore) ListProcessing(_ context.Context) ([]models.Photo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Photo
	for _, p := range s.photos {
		if p.Status == models.PhotoStatusQueued || p.Status == models.PhotoStatusProcessing {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.Before(out[j].UploadedAt) })
	return out, nil
}

func (s *memStore) Update(_ context.Context, id string, upd models.PhotoUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpd != nil {
		return s.failUpd
	}
	photo, ok := s.photos[id]
	if !ok {
		return repository.ErrPhotoNotFound
	}
	if upd.Status != nil {
		photo.Status = *upd.Status
	}
	if upd.Progress != nil {
		photo.Progress = *upd.Progress
	}
	if upd.ProcessedAt != nil {
		photo.ProcessedAt = upd.ProcessedAt
	}
	if upd.ClearError {
		photo.Error = nil
	} else if upd.Error != nil {
		photo.Error = upd.Error
	}
	if upd.Logs != nil {
		photo.Logs = append([]models.LogEntry(nil), upd.Logs...)
	}
	if upd.RetryCount != nil {
		photo.RetryCount = *upd.RetryCount
	}
	if upd.URL != nil {
		photo.URL = *upd.URL
	}
	s.photos[id] = photo
	return nil
}

func (s *memStore) get(id string) models.Photo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.photos[id]
}
