package hosting

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
)

// Uploader stores content and returns its permanent public URL.
type Uploader interface {
	Upload(ctx context.Context, identity string, raw RawMedia) (string, error)
}

// objectName builds "<identity>/<uuid><ext>" with the identity reduced to
// digits so it is safe in paths and URLs.
func objectName(identity, contentType string) string {
	var b strings.Builder
	for _, r := range identity {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	dir := b.String()
	if dir == "" {
		dir = "anon"
	}
	ext := ""
	if ct, _, err := mime.ParseMediaType(contentType); err == nil {
		switch ct {
		case "image/jpeg":
			ext = ".jpg"
		case "video/mp4":
			ext = ".mp4"
		default:
			if exts, _ := mime.ExtensionsByType(ct); len(exts) > 0 {
				ext = exts[0]
			}
		}
	}
	return dir + "/" + uuid.NewString() + ext
}

// LocalUploader writes files under Dir and serves them from BaseURL.
type LocalUploader struct {
	Dir     string
	BaseURL string
}

// Upload implements Uploader.
func (u *LocalUploader) Upload(ctx context.Context, identity string, raw RawMedia) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(identity, raw.ContentType)
	path := filepath.Join(u.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(path, raw.Data, 0o644); err != nil {
		return "", err
	}
	return strings.TrimRight(u.BaseURL, "/") + "/" + name, nil
}

// objectStorage is the subset of the Supabase storage client used here.
type objectStorage interface {
	UploadFile(bucketID, relativePath string, data io.Reader, fileOptions ...storage_go.FileOptions) (storage_go.FileUploadResponse, error)
	GetPublicUrl(bucketID, filePath string, urlOptions ...storage_go.UrlOptions) storage_go.SignedUrlResponse
}

// SupabaseUploader stores objects in a public Supabase Storage bucket.
type SupabaseUploader struct {
	storage objectStorage
	bucket  string
}

// NewSupabaseUploader connects to the project at url with key.
func NewSupabaseUploader(url, key, bucket string) (*SupabaseUploader, error) {
	if url == "" || key == "" {
		return nil, errors.New("hosting: supabase url and key are required")
	}
	if bucket == "" {
		return nil, errors.New("hosting: supabase bucket is required")
	}
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("hosting: create supabase client: %w", err)
	}
	return &SupabaseUploader{storage: client.Storage, bucket: bucket}, nil
}

// Upload implements Uploader.
func (u *SupabaseUploader) Upload(ctx context.Context, identity string, raw RawMedia) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := objectName(identity, raw.ContentType)
	ct := raw.ContentType
	upsert := false
	if _, err := u.storage.UploadFile(u.bucket, name, bytes.NewReader(raw.Data), storage_go.FileOptions{
		ContentType: &ct,
		Upsert:      &upsert,
	}); err != nil {
		return "", fmt.Errorf("hosting: upload %s: %w", name, err)
	}
	pub := u.storage.GetPublicUrl(u.bucket, name)
	if pub.SignedURL == "" {
		return "", fmt.Errorf("hosting: no public url for %s", name)
	}
	return pub.SignedURL, nil
}
