package archive

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePutter struct {
	key         string
	contentType string
	body        []byte
	err         error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.key = aws.ToString(in.Key)
	f.contentType = aws.ToString(in.ContentType)
	f.body, _ = io.ReadAll(in.Body)
	return &s3.PutObjectOutput{}, nil
}

func TestFileName(t *testing.T) {
	t.Parallel()

	got := FileName(time.Date(2025, time.January, 20, 7, 5, 9, 0, time.UTC))
	assert.Equal(t, "digest_20250120_070509.html", got)
}

var generated = time.Date(2025, time.January, 20, 7, 5, 9, 0, time.UTC)

func TestLocalSave(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "out")
	require.NoError(t, NewLocal(dir).Save(context.Background(), generated, []byte("<html></html>")))

	raw, err := os.ReadFile(filepath.Join(dir, "digest_20250120_070509.html"))
	require.NoError(t, err)
	assert.Equal(t, "<html></html>", string(raw))
}

func TestS3Save(t *testing.T) {
	t.Parallel()

	putter := &fakePutter{}
	require.NoError(t, NewS3WithClient(putter, "bucket", "digests").Save(context.Background(), generated, []byte("page")))
	assert.Equal(t, "digests/digest_20250120_070509.html", putter.key)
	assert.Equal(t, "text/html; charset=utf-8", putter.contentType)
	assert.Equal(t, "page", string(putter.body))
}

func TestMultiJoinsErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	failing := NewS3WithClient(&fakePutter{err: errors.New("denied")}, "bucket", "")
	err := Multi{NewLocal(dir), failing, nil}.Save(context.Background(), generated, []byte("page"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "denied")

	_, statErr := os.Stat(filepath.Join(dir, "digest_20250120_070509.html"))
	assert.NoError(t, statErr, "local copy must be written even when another archive fails")
}
