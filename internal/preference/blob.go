package preference

import (
	"context"
	"strconv"

	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/memblob"
	_ "gocloud.dev/blob/s3blob"
)

// BlobStore keeps preferences as small objects in a gocloud bucket, one
// per user
type BlobStore struct {
	bucket *blob.Bucket
	key    string
}

var _ Store = (*BlobStore)(nil)

// OpenBlobStore opens the bucket at bucketURL for userID
func OpenBlobStore(
	ctx context.Context, bucketURL, userID string,
) (*BlobStore, error) {
	bucket, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return NewBlobStore(bucket, userID), nil
}

// NewBlobStore creates a Store for userID in an already open bucket. The
// Store owns bucket and closes it
func NewBlobStore(bucket *blob.Bucket, userID string) *BlobStore {
	return &BlobStore{
		bucket: bucket,
		key:    userKey(userID) + "/" + Key,
	}
}

func (s *BlobStore) Minimized(ctx context.Context) (bool, error) {
	data, err := s.bucket.ReadAll(ctx, s.key)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return false, nil
		}
		return false, err
	}
	return parseValue(string(data))
}

func (s *BlobStore) SetMinimized(ctx context.Context, minimized bool) error {
	data := []byte(strconv.FormatBool(minimized))
	return s.bucket.WriteAll(ctx, s.key, data, &blob.WriterOptions{
		ContentType: "text/plain",
	})
}

func (s *BlobStore) Close() error {
	return s.bucket.Close()
}
