// Package archive uploads runs to an S3-compatible object store. Each run
// becomes a CSV of its snapshots plus a MessagePack copy of the full run
// under runs/<id>/.
package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/chrissnell/divesync/internal/storage"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	CSVObject = "result.csv"
	RunObject = "run.msgpack"
)

// ErrNotFound is returned for missing objects
var ErrNotFound = errors.New("archive object not found")

type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// Store is an object store backed ResultStore
type Store struct {
	client   *minio.Client
	bucket   string
	region   string
	initOnce sync.Once
	initErr  error
}

// New creates a store. The bucket is created on first use if missing.
func New(cfg Config) (*Store, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("archive endpoint is required")
	}
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "us-east-1"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(strings.TrimSpace(cfg.AccessKey), strings.TrimSpace(cfg.SecretKey), ""),
		Secure: cfg.UseSSL,
		Region: region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &Store{client: client, bucket: bucket, region: region}, nil
}

func (s *Store) Name() string { return "archive" }

func (s *Store) ensureBucket(ctx context.Context) error {
	s.initOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.initErr = err
			return
		}
		if exists {
			return
		}
		s.initErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region})
	})
	return s.initErr
}

// ObjectKey is the key of name within a run's prefix
func ObjectKey(runID, name string) string {
	return path.Join("runs", runID, name)
}

// StoreRun uploads the CSV and the encoded run and returns the run prefix
func (s *Store) StoreRun(ctx context.Context, r *storage.Run) (string, error) {
	var csvBuf bytes.Buffer
	if err := storage.WriteCSV(&csvBuf, storage.Flatten(r)); err != nil {
		return "", err
	}
	encoded, err := EncodeRun(r)
	if err != nil {
		return "", err
	}

	id := r.ID.String()
	if err := s.Put(ctx, id, CSVObject, csvBuf.Bytes(), "text/csv"); err != nil {
		return "", err
	}
	if err := s.Put(ctx, id, RunObject, encoded, "application/x-msgpack"); err != nil {
		return "", err
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, ObjectKey(id, "")), nil
}

// Put uploads one object under a run's prefix, e.g. a rendered plot
func (s *Store) Put(ctx context.Context, runID, name string, content []byte, contentType string) error {
	if strings.TrimSpace(runID) == "" || strings.TrimSpace(name) == "" {
		return fmt.Errorf("run id and object name are required")
	}
	if err := s.ensureBucket(ctx); err != nil {
		return fmt.Errorf("ensure bucket: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err := s.client.PutObject(ctx, s.bucket, ObjectKey(runID, name), bytes.NewReader(content), int64(len(content)),
		minio.PutObjectOptions{ContentType: contentType})
	return err
}

// Get downloads one object from a run's prefix
func (s *Store) Get(ctx context.Context, runID, name string) ([]byte, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	obj, err := s.client.GetObject(ctx, s.bucket, ObjectKey(runID, name), minio.GetObjectOptions{})
	if err != nil {
		return nil, err
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" || errResp.Code == "NoSuchBucket" {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return data, nil
}

// List returns the object names stored for a run, sorted
func (s *Store) List(ctx context.Context, runID string) ([]string, error) {
	if err := s.ensureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}

	prefix := ObjectKey(runID, "") + "/"
	var names []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		names = append(names, strings.TrimPrefix(obj.Key, prefix))
	}
	sort.Strings(names)
	return names, nil
}

// LoadRun downloads and decodes the archived run
func (s *Store) LoadRun(ctx context.Context, runID string) (*storage.Run, error) {
	data, err := s.Get(ctx, runID, RunObject)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
		}
		return nil, err
	}
	return DecodeRun(data)
}

// EncodeRun serialises a run with MessagePack using its json field names
func EncodeRun(r *storage.Run) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(r); err != nil {
		return nil, fmt.Errorf("encoding run: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeRun is the inverse of EncodeRun
func DecodeRun(data []byte) (*storage.Run, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")

	var r storage.Run
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding run: %w", err)
	}
	return &r, nil
}

// CheckHealth verifies the bucket can be reached
func (s *Store) CheckHealth(ctx context.Context) *storage.HealthStatus {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return storage.Unhealthy("object store unreachable", err)
	}
	if !exists {
		return storage.Healthy("object store reachable, bucket " + s.bucket + " will be created on first write")
	}
	return storage.Healthy("object store reachable, bucket " + s.bucket + " present")
}

func (s *Store) Close() error { return nil }
