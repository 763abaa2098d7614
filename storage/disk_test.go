package storage

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"reef-chat/domain/chat"
	"reef-chat/errors"
)

// Smallest possible valid PNG: signature plus empty IHDR-less body is
// enough for content sniffing.
var pngBytes = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0}

func Test_Save_Image_Returns_Hostable_URL(t *testing.T) {
	req := require.New(t)
	dir := t.TempDir()
	store, err := NewMediaStore(dir, "http://localhost:8080/media/", slog.Default())
	req.NoError(err)

	url, kind, err := store.Save(bytes.NewReader(pngBytes))
	req.NoError(err)
	req.Equal(chat.MediaImage, kind)
	req.True(strings.HasPrefix(url, "http://localhost:8080/media/"))
	req.True(strings.HasSuffix(url, ".png"))

	// And the bytes landed on disk under the served directory
	name := url[strings.LastIndex(url, "/")+1:]
	data, err := os.ReadFile(filepath.Join(dir, name))
	req.NoError(err)
	req.Equal(pngBytes, data)
}

func Test_Save_Rejects_Non_Media_Content(t *testing.T) {
	req := require.New(t)
	store, err := NewMediaStore(t.TempDir(), "http://localhost:8080/media", slog.Default())
	req.NoError(err)

	_, _, err = store.Save(strings.NewReader("just some plain text"))
	req.ErrorIs(err, errors.ErrValidation)
}
