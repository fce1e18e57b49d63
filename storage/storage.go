// Package storage uploads user photos to Google Cloud Storage. It is an
// external collaborator of the core: handlers call it and store the
// resulting public URL on the profile.
package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

type PhotoStore struct {
	client *storage.Client
	bucket string
}

func NewPhotoStore(ctx context.Context, bucket, credentialsFile string) (*PhotoStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &PhotoStore{client: client, bucket: bucket}, nil
}

var allowedPhotoExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// UploadUserPhoto stores the uploaded image under a unique object name
// and returns its public URL.
func (s *PhotoStore) UploadUserPhoto(ctx context.Context, userID string, fh *multipart.FileHeader) (string, error) {
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowedPhotoExt[ext] {
		return "", fmt.Errorf("only image files are allowed")
	}

	file, err := fh.Open()
	if err != nil {
		return "", err
	}
	defer file.Close()

	buffer := make([]byte, 512)
	if _, err := file.Read(buffer); err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file header")
	}
	if _, err := file.Seek(0, 0); err != nil {
		return "", fmt.Errorf("failed to reset file reader")
	}
	if !strings.HasPrefix(http.DetectContentType(buffer), "image/") {
		return "", fmt.Errorf("only image files are allowed")
	}

	objectName := fmt.Sprintf("users/%s/%d-%s%s", userID, time.Now().UTC().Unix(), uuid.New().String(), ext)

	ctx, cancel := context.WithTimeout(ctx, 50*time.Second)
	defer cancel()

	w := s.client.Bucket(s.bucket).Object(objectName).NewWriter(ctx)
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		if ct = mime.TypeByExtension(ext); ct == "" {
			ct = "application/octet-stream"
		}
	}
	w.ContentType = ct
	w.CacheControl = "no-cache"

	if _, err := io.Copy(w, file); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("upload copy: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("upload close: %w", err)
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, objectName), nil
}

func (s *PhotoStore) Close() error { return s.client.Close() }
