package minio

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/turtacn/DiscourseLens/internal/domain/document"
	"github.com/turtacn/DiscourseLens/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/DiscourseLens/pkg/errors"
)

const scheme = "minio://"

var (
	ErrObjectNotFound = errors.New(errors.ErrCodeNotFound, "object not found")
	ErrObjectTooLarge = errors.New(errors.ErrCodeValidation, "object too large")
)

// ObjectRef names an object.  An empty Bucket means the configured one.
type ObjectRef struct {
	Bucket string
	Key    string
}

func (r ObjectRef) String() string {
	if r.Bucket == "" {
		return r.Key
	}
	return scheme + r.Bucket + "/" + r.Key
}

// ParseObjectRef accepts "minio://bucket/key" or a bare key.
func ParseObjectRef(s string) (ObjectRef, error) {
	if !strings.HasPrefix(s, scheme) {
		if s == "" {
			return ObjectRef{}, errors.InvalidParam("object key is empty")
		}
		return ObjectRef{Key: strings.TrimPrefix(s, "/")}, nil
	}
	bucket, key, ok := strings.Cut(strings.TrimPrefix(s, scheme), "/")
	if !ok || bucket == "" || key == "" {
		return ObjectRef{}, errors.InvalidParam("object reference must be minio://bucket/key").WithDetail(s)
	}
	return ObjectRef{Bucket: bucket, Key: key}, nil
}

// DocumentStore reads parsed documents and archives analysis reports.
type DocumentStore struct {
	client *Client
	logger logging.Logger
}

func NewDocumentStore(client *Client, log logging.Logger) *DocumentStore {
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &DocumentStore{client: client, logger: log}
}

func (s *DocumentStore) bucket(ref ObjectRef) string {
	if ref.Bucket != "" {
		return ref.Bucket
	}
	return s.client.config.Bucket
}

// LoadDocument fetches and decodes a parsed document.  The document id
// defaults to the object key.
func (s *DocumentStore) LoadDocument(ctx context.Context, ref ObjectRef) (*document.ParsedDocument, error) {
	api, err := s.client.api()
	if err != nil {
		return nil, err
	}
	bucket := s.bucket(ref)

	info, err := api.StatObject(ctx, bucket, ref.Key, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, ErrObjectNotFound.WithDetail(ref.String())
		}
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to stat object")
	}
	if info.Size > s.client.config.MaxObjectBytes {
		return nil, ErrObjectTooLarge.WithDetail(ref.String())
	}

	body, err := api.GetObject(ctx, bucket, ref.Key, minio.GetObjectOptions{})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStorage, "failed to download object")
	}
	defer body.Close()

	pd, err := document.Decode(io.LimitReader(body, s.client.config.MaxObjectBytes))
	if err != nil {
		return nil, err
	}
	if pd.ID == "" {
		pd.ID = ref.Key
	}
	s.logger.Debug("document loaded",
		logging.String("object", ref.String()),
		logging.Int64("bytes", info.Size),
		logging.Int("elements", len(pd.Elements)))
	return pd, nil
}

// SaveReport writes v as JSON under the report prefix and returns its key.
func (s *DocumentStore) SaveReport(ctx context.Context, runID string, v interface{}) (string, error) {
	api, err := s.client.api()
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeSerialization, "failed to encode report")
	}
	key := s.client.config.ReportPrefix + runID + ".json"
	_, err = api.PutObject(ctx, s.client.config.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeStorage, "failed to upload report")
	}
	return key, nil
}

// Load parses ref with ParseObjectRef and loads the document.
func (s *DocumentStore) Load(ctx context.Context, ref string) (*document.ParsedDocument, error) {
	r, err := ParseObjectRef(ref)
	if err != nil {
		return nil, err
	}
	return s.LoadDocument(ctx, r)
}
