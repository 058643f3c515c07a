// Package backup implements the optional redundant mirror of saved
// firmware images to an S3-compatible bucket, repurposed from the
// teacher's internal/hub/storage/minio.go. It is strictly additive: the
// catalog's local files remain the source of truth devices download
// from, and a mirror failure never blocks an OTA add.
package backup

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"os"

	"github.com/go-logr/logr"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/nimbic-io/otahub/internal/broker"
	"github.com/nimbic-io/otahub/pkg/options"
)

// Mirror watches the bus for OtaPackageSaved events and uploads the
// associated firmware file to a configured S3-compatible bucket.
type Mirror struct {
	log    logr.Logger
	opts   *options.S3Options
	client *minio.Client

	in chan broker.Event
}

func New(opts *options.S3Options, log logr.Logger) (*Mirror, error) {
	transport := &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !opts.UseSSL},
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(opts.AccessKeyID, opts.SecretAccessKey, ""),
		Secure:    opts.UseSSL,
		Region:    opts.Region,
		Transport: transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	return &Mirror{
		log:    log,
		opts:   opts,
		client: client,
		in:     make(chan broker.Event, 256),
	}, nil
}

// Inbox returns the channel the mirror should be registered with under
// the broker name "backup".
func (m *Mirror) Inbox() chan broker.Event {
	return m.in
}

// Run ensures the bucket exists, then mirrors every saved firmware file
// until ctx is cancelled.
func (m *Mirror) Run(ctx context.Context) error {
	if err := m.ensureBucket(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.in:
			m.handle(ctx, ev)
		}
	}
}

func (m *Mirror) ensureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.opts.BucketName)
	if err != nil {
		return fmt.Errorf("check bucket existence: %w", err)
	}
	if exists {
		return nil
	}

	m.log.Info("backup bucket does not exist, creating", "bucket", m.opts.BucketName)
	if err := m.client.MakeBucket(ctx, m.opts.BucketName, minio.MakeBucketOptions{Region: m.opts.Region}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (m *Mirror) handle(ctx context.Context, ev broker.Event) {
	added, ok := ev.(broker.OtaPackageSaved)
	if !ok {
		return
	}

	if err := m.upload(ctx, added.UpdateID, added.FilePath); err != nil {
		m.log.Error(err, "failed to mirror firmware image", "update_id", added.UpdateID)
	}
}

func (m *Mirror) upload(ctx context.Context, updateID, filePath string) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("open local image: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat local image: %w", err)
	}

	objectKey := updateID + "/" + info.Name()
	_, err = m.client.PutObject(ctx, m.opts.BucketName, objectKey, f, info.Size(), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}

	m.log.Info("mirrored firmware image to backup bucket", "update_id", updateID, "key", objectKey)
	return nil
}
