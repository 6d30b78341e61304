package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskUploader(t *testing.T) {
	root := t.TempDir()
	u, err := NewDiskUploader(root, "http://localhost:8080/files/")
	require.NoError(t, err)

	ctx := context.Background()
	res, err := u.Upload(ctx, UploadInput{
		Key:         PrefixDecklists + "1700000000000_ab12cd.png",
		ContentType: "image/png",
		Body:        strings.NewReader("png bytes"),
	})
	require.NoError(t, err)

	assert.Equal(t, "decklists/1700000000000_ab12cd.png", res.Key)
	assert.Equal(t, "http://localhost:8080/files/decklists/1700000000000_ab12cd.png", res.Location)
	assert.NotEmpty(t, res.ETag)

	data, err := os.ReadFile(filepath.Join(root, "decklists", "1700000000000_ab12cd.png"))
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(data))

	require.NoError(t, u.Delete(ctx, res.Key))
	_, err = os.Stat(filepath.Join(root, "decklists", "1700000000000_ab12cd.png"))
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, u.Delete(ctx, res.Key), "deleting twice is fine")
}

func TestDiskUploaderStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	u, err := NewDiskUploader(filepath.Join(root, "uploads"), "/files")
	require.NoError(t, err)

	_, err = u.Upload(context.Background(), UploadInput{Key: "../../escape.txt", Body: strings.NewReader("x")})
	require.NoError(t, err)

	_, err = os.Stat(filepath.Join(root, "escape.txt"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, "uploads", "escape.txt"))
	assert.NoError(t, err)

	_, err = u.Upload(context.Background(), UploadInput{Key: "", Body: strings.NewReader("x")})
	assert.Error(t, err)
}

func TestPublicURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com/decklists/a%20b.pdf", publicURL("https://cdn.example.com", "decklists/a b.pdf"))
	assert.Equal(t, "https://cdn.example.com/logos/x.png", publicURL("https://cdn.example.com/", "/logos/x.png"))
	assert.Empty(t, publicURL("", "x"))
}
