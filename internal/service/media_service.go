package service

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MediaStore guarda bytes y devuelve la URL pública con la que se referencian.
type MediaStore interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// LocalMediaStore escribe en disco; gin sirve el directorio bajo /uploads.
type LocalMediaStore struct {
	dir     string
	baseURL string
}

func NewLocalMediaStore(dir, baseURL string) (*LocalMediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalMediaStore{
		dir:     dir,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

func (s *LocalMediaStore) Dir() string {
	return s.dir
}

func (s *LocalMediaStore) Save(_ context.Context, name string, data []byte) (string, error) {
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", err
	}
	return s.baseURL + "/uploads/" + name, nil
}

type UploadFile struct {
	Name   string
	Reader io.Reader
}

type UploadedMedia struct {
	URL      string `json:"url"`
	Type     string `json:"type"`
	PublicID string `json:"publicId"`
	Bytes    int64  `json:"bytes"`
	Format   string `json:"format,omitempty"`
}

// MediaService valida y persiste adjuntos de imagen o video.
type MediaService struct {
	logger   *zap.Logger
	store    MediaStore
	maxFiles int
	maxBytes int64
	now      func() time.Time
}

func NewMediaService(logger *zap.Logger, store MediaStore, maxFiles int, maxBytes int64) *MediaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxFiles <= 0 {
		maxFiles = defaultMaxAttachments
	}
	return &MediaService{
		logger:   logger,
		store:    store,
		maxFiles: maxFiles,
		maxBytes: maxBytes,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *MediaService) Upload(ctx context.Context, files []UploadFile) ([]UploadedMedia, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	if len(files) > s.maxFiles {
		return nil, ErrTooManyFiles
	}

	out := make([]UploadedMedia, 0, len(files))
	for _, f := range files {
		media, err := s.uploadOne(ctx, f)
		if err != nil {
			return nil, err
		}
		out = append(out, media)
	}
	return out, nil
}

func (s *MediaService) uploadOne(ctx context.Context, f UploadFile) (UploadedMedia, error) {
	reader := f.Reader
	if s.maxBytes > 0 {
		reader = io.LimitReader(f.Reader, s.maxBytes+1)
	}
	data, err := io.ReadAll(reader)
	if err != nil {
		return UploadedMedia{}, fmt.Errorf("read upload: %w", err)
	}
	if s.maxBytes > 0 && int64(len(data)) > s.maxBytes {
		return UploadedMedia{}, ErrFileTooLarge
	}

	mt := mimetype.Detect(data)
	kind := mediaKind(mt.String())
	if kind == "" {
		return UploadedMedia{}, ErrUnsupportedMedia
	}

	ext := mt.Extension()
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(f.Name))
	}
	name := fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), uuid.NewString(), ext)

	url, err := s.store.Save(ctx, name, data)
	if err != nil {
		s.logger.Error("media store failed", zap.Error(err), zap.String("file", name))
		return UploadedMedia{}, fmt.Errorf("store media: %w", err)
	}

	return UploadedMedia{
		URL:      url,
		Type:     kind,
		PublicID: name,
		Bytes:    int64(len(data)),
		Format:   strings.TrimPrefix(ext, "."),
	}, nil
}

func mediaKind(mime string) string {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return "image"
	case strings.HasPrefix(mime, "video/"):
		return "video"
	default:
		return ""
	}
}
