// Package storage mirrors completed media to an S3 bucket as an off-machine
// backup of the export before the source links expire.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"snapvault/pkg/errors"
)

// Client provides S3 mirror operations
type Client struct {
	s3Client *s3.Client
	bucket   string
}

// NewClient creates an S3 client using the ambient AWS credential chain
func NewClient(ctx context.Context, bucket, region string) (*Client, error) {
	slog.Info("s3_client_init", "bucket", bucket, "region", region)

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		slog.Error("aws_config_load_failed", "error", err)
		return nil, errors.Wrap(err, "failed to load AWS config")
	}

	return &Client{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucket,
	}, nil
}

// UploadResult contains upload metadata
type UploadResult struct {
	Key    string
	SHA256 string
	Size   int64
}

// Upload stores a local file under key, computing its SHA256 on the way
func (c *Client) Upload(ctx context.Context, key, localPath string) (*UploadResult, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open local file")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat local file")
	}

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return nil, errors.Wrap(err, "failed to hash local file")
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "failed to rewind local file")
	}
	checksum := hex.EncodeToString(hash.Sum(nil))

	_, err = c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(fi.Size()),
	})
	if err != nil {
		slog.Error("s3_put_object_failed", "key", key, "error", err)
		return nil, errors.Wrap(err, "failed to upload object")
	}

	slog.Info("s3_upload_complete",
		"key", key,
		"size_kb", fi.Size()/1024,
		"sha256", checksum[:16]+"...",
	)

	return &UploadResult{Key: key, SHA256: checksum, Size: fi.Size()}, nil
}

// Exists checks if an object is already mirrored
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if strings.Contains(err.Error(), "NotFound") {
			return false, nil
		}
		slog.Error("s3_head_object_failed", "key", key, "error", err)
		return false, errors.Wrap(err, "failed to check object existence")
	}
	return true, nil
}

// MirrorStats summarizes a mirror pass
type MirrorStats struct {
	Uploaded int
	Skipped  int
	Failed   int
}

// MirrorDirectory uploads every media file under root to prefix, preserving
// the images/videos layout and skipping objects that already exist. Per-file
// failures are logged and counted, not fatal.
func (c *Client) MirrorDirectory(ctx context.Context, root, prefix string) (MirrorStats, error) {
	var stats MirrorStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".jpg", ".jpeg", ".mp4", ".mov":
		default:
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		key := prefix + "/" + filepath.ToSlash(rel)

		exists, err := c.Exists(ctx, key)
		if err == nil && exists {
			stats.Skipped++
			return nil
		}

		if _, err := c.Upload(ctx, key, path); err != nil {
			slog.Warn("mirror_upload_failed", "path", path, "error", err)
			stats.Failed++
			return nil
		}
		stats.Uploaded++
		return nil
	})

	return stats, errors.Wrap(err, "mirror walk failed")
}
