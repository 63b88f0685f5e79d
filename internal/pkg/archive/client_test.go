package archive

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"github.com/ManuelReschke/PixelMarket/app/models"
	"github.com/ManuelReschke/PixelMarket/internal/pkg/env"
)

type memoryStore struct {
	objects  map[string][]byte
	metadata map[string]map[string]string
	buckets  map[string]bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: map[string][]byte{}, metadata: map[string]map[string]string{}, buckets: map[string]bool{}}
}

func (m *memoryStore) HeadBucket(_ context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if !m.buckets[aws.ToString(in.Bucket)] {
		return nil, errors.New("not found")
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *memoryStore) CreateBucket(_ context.Context, in *s3.CreateBucketInput, _ ...func(*s3.Options)) (*s3.CreateBucketOutput, error) {
	m.buckets[aws.ToString(in.Bucket)] = true
	return &s3.CreateBucketOutput{}, nil
}

func (m *memoryStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	key := aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)
	m.objects[key] = data
	m.metadata[key] = in.Metadata
	return &s3.PutObjectOutput{}, nil
}

func (m *memoryStore) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := m.objects[aws.ToString(in.Bucket)+"/"+aws.ToString(in.Key)]
	if !ok {
		return nil, errors.New("no such key")
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func TestGetObjectKey(t *testing.T) {
	cfg := &Config{Prefix: "webhooks"}
	at := time.Date(2025, 3, 9, 23, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	assert.Equal(t, "webhooks/hotmart/2025/03/42.json", cfg.GetObjectKey("hotmart", 42, at.Add(-time.Hour)))
	assert.Equal(t, "webhooks/kiwify/2025/03/7.json", (&Config{}).GetObjectKey("kiwify", 7, at))
}

func TestArchiveAndFetch(t *testing.T) {
	store := newMemoryStore()
	client := newClient(store, &Config{BucketName: "archive", Prefix: "webhooks"})
	received := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	entry := &models.WebhookLog{
		ID:         9,
		Source:     "kiwify",
		RawPayload: []byte(`{"order_id":"kw-1"}`),
		Signature:  "hmac-sha1 abc",
		Headers:    datatypes.JSON(`{"User-Agent":"kiwify"}`),
		SourceIP:   "203.0.113.7",
		CreatedAt:  received,
	}

	require.NoError(t, client.Archive(context.Background(), entry))
	assert.Equal(t, "9", store.metadata["archive/webhooks/kiwify/2025/01/9.json"]["webhook-log-id"])

	doc, err := client.Fetch(context.Background(), "kiwify", 9, received)
	require.NoError(t, err)
	assert.Equal(t, entry.RawPayload, doc.RawPayload)
	assert.Equal(t, "hmac-sha1 abc", doc.Signature)
	assert.JSONEq(t, `{"User-Agent":"kiwify"}`, string(doc.Headers))
	assert.True(t, received.Equal(doc.ReceivedAt))

	_, err = client.Fetch(context.Background(), "kiwify", 10, received)
	assert.Error(t, err)
}

func TestTestConnectionCreatesBucketOutsideProd(t *testing.T) {
	prev := env.Env
	env.Env = map[string]string{"APP_ENV": "dev"}
	t.Cleanup(func() { env.Env = prev })

	store := newMemoryStore()
	client := newClient(store, &Config{BucketName: "fresh", EndpointURL: "http://minio:9000"})
	require.NoError(t, client.testConnection(context.Background()))
	assert.True(t, store.buckets["fresh"])

	env.Env = map[string]string{"APP_ENV": "prod"}
	client = newClient(newMemoryStore(), &Config{BucketName: "missing"})
	assert.Error(t, client.testConnection(context.Background()))
}

func TestLoadConfigRequiresCredentialsWhenEnabled(t *testing.T) {
	prev := env.Env
	t.Cleanup(func() { env.Env = prev })

	env.Env = map[string]string{"S3_ARCHIVE_ENABLED": "true", "S3_ACCESS_KEY_ID": "id"}
	_, err := LoadConfig()
	assert.Error(t, err)

	env.Env = map[string]string{}
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.False(t, cfg.IsEnabled())
	assert.Equal(t, "webhooks", cfg.Prefix)

	_, err = NewClient(cfg)
	assert.Error(t, err)
}
