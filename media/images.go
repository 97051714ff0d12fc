// Package media stores uploaded images in MinIO.
package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	maxFileSize  = 5 * 1024 * 1024
	maxDimension = 1024
	jpegQuality  = 85

	BucketProfiles  = "profile-pics"
	BucketDoctors   = "doctor-pics"
	BucketMedicines = "medicine-pics"
)

var (
	ErrTooLarge        = errors.New("file size exceeds maximum limit of 5 MB")
	ErrUnsupportedType = errors.New("only JPG and PNG files are allowed")
	ErrInvalidImage    = errors.New("invalid image format")
	ErrUnavailable     = errors.New("image storage is not configured")
)

// Buckets lists every bucket the application writes to.
var Buckets = []string{BucketProfiles, BucketDoctors, BucketMedicines}

// Uploader stores an uploaded image and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, bucket string, file *multipart.FileHeader) (string, error)
}

type MinioStore struct {
	client    *minio.Client
	publicURL string
	logger    *zap.Logger
}

func NewMinioStore(client *minio.Client, publicURL string, logger *zap.Logger) *MinioStore {
	return &MinioStore{
		client:    client,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger,
	}
}

// EnsureBuckets creates any missing bucket.
func (s *MinioStore) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range Buckets {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return errors.Wrapf(err, "failed to check bucket %s", bucket)
		}
		if exists {
			s.logger.Info("bucket verified", zap.String("bucket", bucket))
			continue
		}
		err = s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
		if err != nil && !strings.Contains(err.Error(), "already exists") {
			return errors.Wrapf(err, "failed to create bucket %s", bucket)
		}
		s.logger.Info("bucket created", zap.String("bucket", bucket))
	}
	return nil
}

// Upload shrinks the image to fit maxDimension, re-encodes it as JPEG and stores it.
func (s *MinioStore) Upload(ctx context.Context, bucket string, file *multipart.FileHeader) (string, error) {
	buf, err := Normalize(file)
	if err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s.jpg", uuid.New().String())

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	info, err := s.client.PutObject(ctx, bucket, filename,
		bytes.NewReader(buf.Bytes()), int64(buf.Len()),
		minio.PutObjectOptions{ContentType: "image/jpeg"},
	)
	if err != nil {
		return "", errors.Wrap(err, "failed to upload image")
	}

	s.logger.Info("image uploaded",
		zap.String("bucket", bucket),
		zap.String("filename", filename),
		zap.Int64("size", info.Size))

	return fmt.Sprintf("%s/%s/%s", s.publicURL, bucket, filename), nil
}

// Normalize validates an uploaded image and returns it as a resized JPEG.
func Normalize(file *multipart.FileHeader) (*bytes.Buffer, error) {
	if file.Size > maxFileSize {
		return nil, ErrTooLarge
	}
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".jpg" && ext != ".jpeg" && ext != ".png" {
		return nil, ErrUnsupportedType
	}

	src, err := file.Open()
	if err != nil {
		return nil, errors.Wrap(err, "failed to open uploaded file")
	}
	defer src.Close()

	img, _, err := image.Decode(src)
	if err != nil {
		return nil, ErrInvalidImage
	}

	resized := resize.Thumbnail(maxDimension, maxDimension, img, resize.Lanczos3)

	buf := new(bytes.Buffer)
	if err := jpeg.Encode(buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, errors.Wrap(err, "failed to encode image")
	}
	return buf, nil
}

// Disabled is used when no object storage is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, *multipart.FileHeader) (string, error) {
	return "", ErrUnavailable
}
