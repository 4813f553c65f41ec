package s3

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/marmos91/tinymmo/pkg/ledger"
	"github.com/marmos91/tinymmo/pkg/ledger/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	bucket string
	key    string
	ctype  string
	body   []byte
	err    error
	calls  int
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.bucket = aws.ToString(in.Bucket)
	f.key = aws.ToString(in.Key)
	f.ctype = aws.ToString(in.ContentType)
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.body = body
	return &s3.PutObjectOutput{}, nil
}

func seed(t *testing.T, n int) ledger.Store {
	t.Helper()
	store := memory.New(memory.Config{})
	for i := 0; i < n; i++ {
		rec := ledger.Record{Kind: ledger.KindConnect, SessionID: uuid.New(), Tick: uint64(i)}
		require.NoError(t, store.Append(context.Background(), &rec))
	}
	return store
}

func TestArchive_UploadsJSONLines(t *testing.T) {
	client := &fakeS3{}
	a := New(client, "tinymmo-ledger", "prod/eu", nil)
	a.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }

	n, err := a.Archive(context.Background(), seed(t, 3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "tinymmo-ledger", client.bucket)
	assert.Equal(t, "prod/eu/ledger-20240506T070809Z.jsonl", client.key)
	assert.Equal(t, "application/x-ndjson", client.ctype)

	scanner := bufio.NewScanner(bytes.NewReader(client.body))
	var seqs []uint64
	for scanner.Scan() {
		var rec ledger.Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		seqs = append(seqs, rec.Seq)
	}
	assert.Equal(t, []uint64{1, 2, 3}, seqs)
}

func TestArchive_EmptyLedgerSkipsUpload(t *testing.T) {
	client := &fakeS3{}
	n, err := New(client, "b", "", nil).Archive(context.Background(), seed(t, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Equal(t, 0, client.calls)
}

func TestArchive_UploadError(t *testing.T) {
	client := &fakeS3{err: errors.New("access denied")}
	_, err := New(client, "b", "", nil).Archive(context.Background(), seed(t, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestConfigEnabled(t *testing.T) {
	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Bucket: "x"}.Enabled())
}
