// Package storage implements the media-upload collaborator: it turns an
// uploaded attachment into a hostable URL. The chat core itself only ever
// sees the resolved URL on a send.
package storage

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"reef-chat/domain/chat"
	"reef-chat/errors"
)

// MediaStore writes attachments to a local directory and serves them
// under a base URL.
type MediaStore struct {
	dir     string
	baseURL string
	log     *slog.Logger
}

func NewMediaStore(dir, baseURL string, log *slog.Logger) (*MediaStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating media dir: %v", errors.ErrStorage, err)
	}
	return &MediaStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), log: log}, nil
}

// Dir exposes the backing directory so the HTTP layer can serve it.
func (s *MediaStore) Dir() string {
	return s.dir
}

// Save sniffs the content type, rejects anything that is not an image or
// a video, stores the bytes under a fresh name and returns the hostable
// URL plus the derived media kind.
func (s *MediaStore) Save(r io.Reader) (string, chat.MediaKind, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", "", fmt.Errorf("%w: reading upload: %v", errors.ErrStorage, err)
	}

	mtype := mimetype.Detect(data)
	var kind chat.MediaKind
	switch {
	case strings.HasPrefix(mtype.String(), "image/"):
		kind = chat.MediaImage
	case strings.HasPrefix(mtype.String(), "video/"):
		kind = chat.MediaVideo
	default:
		return "", "", fmt.Errorf("%w: unsupported media type %s", errors.ErrValidation, mtype.String())
	}

	name := uuid.NewString() + mtype.Extension()
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", "", fmt.Errorf("%w: writing %s: %v", errors.ErrStorage, path, err)
	}

	s.log.Debug("Stored attachment", "path", path, "mime", mtype.String())
	return s.baseURL + "/" + name, kind, nil
}
