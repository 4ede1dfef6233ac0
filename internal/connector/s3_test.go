package connector

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockS3Client mocks the S3 API including the calls made by the uploader.
type mockS3Client struct {
	mock.Mock
	putBodies map[string][]byte
}

func (m *mockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if params.Body != nil {
		data, _ := io.ReadAll(params.Body)
		if m.putBodies == nil {
			m.putBodies = map[string][]byte{}
		}
		m.putBodies[aws.ToString(params.Key)] = data
	}
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.PutObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.UploadPartOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.CreateMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.CompleteMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.AbortMultipartUploadOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.ListObjectsV2Output)
	return out, args.Error(1)
}

func (m *mockS3Client) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.GetObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadBucketOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.HeadObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.DeleteObjectOutput)
	return out, args.Error(1)
}

func (m *mockS3Client) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*s3.ListBucketsOutput)
	return out, args.Error(1)
}

func withKey(key string) any {
	return mock.MatchedBy(func(in *s3.HeadObjectInput) bool { return aws.ToString(in.Key) == key })
}

func withPrefix(prefix string) any {
	return mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool { return aws.ToString(in.Prefix) == prefix })
}

func connectedS3(t *testing.T, client *mockS3Client, lfs afero.Fs) *S3Connector {
	t.Helper()
	client.On("HeadBucket", mock.Anything, mock.MatchedBy(func(in *s3.HeadBucketInput) bool {
		return aws.ToString(in.Bucket) == "media"
	})).Return(&s3.HeadBucketOutput{}, nil).Once()

	c := NewS3Connector(Options{LocalFS: lfs, ChunkSize: 4})
	c.newClient = func(context.Context, Config) (s3API, error) { return client, nil }
	require.NoError(t, c.Connect(context.Background(), Config{Protocol: ProtocolS3, Bucket: "media", AccessKey: "ak", SecretKey: "sk"}))
	return c
}

func TestS3ConnectChecksBucket(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	assert.True(t, c.IsConnected())
	assert.Equal(t, "media", c.Bucket())
	assert.Equal(t, "/", c.CurrentPath(context.Background()))
	client.AssertExpectations(t)
}

func TestS3ConnectUnreachableBucket(t *testing.T) {
	client := &mockS3Client{}
	client.On("HeadBucket", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "NotFound", Message: "Not Found"})

	c := NewS3Connector(Options{})
	c.newClient = func(context.Context, Config) (s3API, error) { return client, nil }
	err := c.Connect(context.Background(), Config{Protocol: ProtocolS3, Bucket: "ghost"})

	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Contains(t, connErr.Message, "NotFound")
	assert.False(t, c.IsConnected())
}

func TestS3ListPhotosPrefix(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	client.On("ListObjectsV2", mock.Anything, withPrefix("photos/")).Return(&s3.ListObjectsV2Output{
		CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("photos/2024/")}},
		Contents:       []types.Object{{Key: aws.String("photos/a.jpg"), Size: aws.Int64(2048)}},
	}, nil)

	entries, err := c.List(context.Background(), "photos/")
	require.NoError(t, err)

	assert.Equal(t, []Entry{
		{Name: "2024/", Path: "photos/2024/", IsDir: true},
		{Name: "a.jpg", Path: "photos/a.jpg", Size: 2048},
	}, entries)
	assert.Equal(t, "photos/", c.CurrentPath(context.Background()))
}

func TestS3ListSuppressesMarkers(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	modified := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	client.On("ListObjectsV2", mock.Anything, withPrefix("docs/")).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("docs/"), Size: aws.Int64(0)},
			{Key: aws.String("docs/empty/"), Size: aws.Int64(0)},
			{Key: aws.String("docs/guide.md"), Size: aws.Int64(10), LastModified: &modified},
		},
	}, nil)

	entries, err := c.List(context.Background(), "/docs")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Entry{Name: "guide.md", Path: "docs/guide.md", Size: 10, Modified: "2024-05-06 07:08"}, entries[0])
}

func TestS3ListPaginates(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil
	})).Return(&s3.ListObjectsV2Output{
		Contents:              []types.Object{{Key: aws.String("b.txt"), Size: aws.Int64(1)}},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("page2"),
	}, nil).Once()
	client.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return aws.ToString(in.ContinuationToken) == "page2"
	})).Return(&s3.ListObjectsV2Output{
		CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("z/")}},
		Contents:       []types.Object{{Key: aws.String("a.txt"), Size: aws.Int64(2)}},
	}, nil).Once()

	entries, err := c.List(context.Background(), "/")
	require.NoError(t, err)

	var names []string
	for _, e := range entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"z/", "a.txt", "b.txt"}, names)
	client.AssertExpectations(t)
}

func TestS3ListFailureKeepsPrefix(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	client.On("ListObjectsV2", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"})

	_, err := c.List(context.Background(), "private/")
	assert.ErrorIs(t, err, ErrPermission)
	assert.Equal(t, "/", c.CurrentPath(context.Background()))
}

func TestS3Download(t *testing.T) {
	client := &mockS3Client{}
	lfs := afero.NewMemMapFs()
	c := connectedS3(t, client, lfs)

	payload := []byte("0123456789")
	client.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
		return aws.ToString(in.Key) == "photos/a.jpg" && aws.ToString(in.Bucket) == "media"
	})).Return(&s3.GetObjectOutput{
		Body:          io.NopCloser(struct{ io.Reader }{bytes.NewReader(payload)}),
		ContentLength: aws.Int64(int64(len(payload))),
	}, nil)

	calls, fn := recordProgress()
	require.NoError(t, c.Download(context.Background(), "photos/a.jpg", "/dl/a.jpg", fn))

	got, err := afero.ReadFile(lfs, "/dl/a.jpg")
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	assert.Equal(t, []progressCall{{4, 10}, {8, 10}, {10, 10}}, *calls)
}

func TestS3DownloadMissingKey(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	client.On("GetObject", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "The specified key does not exist."})

	err := c.Download(context.Background(), "nope", "/dl/nope", nil)
	assert.ErrorIs(t, err, ErrNotFound)

	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Contains(t, opErr.Message, "NoSuchKey")
}

func TestS3UploadReportsFinalTotal(t *testing.T) {
	client := &mockS3Client{}
	lfs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(lfs, "/up/report.csv", []byte("a,b,c\n1,2,3\n"), 0o644))
	c := connectedS3(t, client, lfs)

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "reports/report.csv" && aws.ToString(in.ContentType) == "text/csv"
	})).Return(&s3.PutObjectOutput{}, nil)

	calls, fn := recordProgress()
	require.NoError(t, c.Upload(context.Background(), "/up/report.csv", "/reports/report.csv", fn))

	assert.Equal(t, []byte("a,b,c\n1,2,3\n"), client.putBodies["reports/report.csv"])
	assertMonotonic(t, *calls)
	require.NotEmpty(t, *calls)
	assert.Equal(t, progressCall{12, 12}, (*calls)[len(*calls)-1])
}

func TestS3UploadFailure(t *testing.T) {
	client := &mockS3Client{}
	lfs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(lfs, "/up/x", []byte("x"), 0o644))
	c := connectedS3(t, client, lfs)

	client.On("PutObject", mock.Anything, mock.Anything).
		Return(nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "Access Denied"})

	err := c.Upload(context.Background(), "/up/x", "x", nil)
	assert.ErrorIs(t, err, ErrPermission)
}

func TestS3DeleteChecksExistence(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	client.On("HeadObject", mock.Anything, withKey("photos/a.jpg")).Return(&s3.HeadObjectOutput{}, nil)
	client.On("DeleteObject", mock.Anything, mock.MatchedBy(func(in *s3.DeleteObjectInput) bool {
		return aws.ToString(in.Key) == "photos/a.jpg"
	})).Return(&s3.DeleteObjectOutput{}, nil)
	client.On("HeadObject", mock.Anything, withKey("photos/missing.jpg")).
		Return(nil, &smithy.GenericAPIError{Code: "NotFound"})

	ctx := context.Background()
	assert.True(t, c.Delete(ctx, "photos/a.jpg"))
	assert.False(t, c.Delete(ctx, "photos/missing.jpg"))
	client.AssertNumberOfCalls(t, "DeleteObject", 1)
}

func TestS3CreateDirectoryWritesMarker(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	client.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return aws.ToString(in.Key) == "photos/2025/"
	})).Return(&s3.PutObjectOutput{}, nil)

	assert.True(t, c.CreateDirectory(context.Background(), "photos/2025"))
	assert.Empty(t, client.putBodies["photos/2025/"])
	assert.False(t, c.CreateDirectory(context.Background(), "/"))
}

func TestS3CreateDirectoryThenList(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	client.On("PutObject", mock.Anything, mock.Anything).Return(&s3.PutObjectOutput{}, nil)
	client.On("ListObjectsV2", mock.Anything, withPrefix("photos/")).Return(&s3.ListObjectsV2Output{
		CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("photos/2025/")}},
	}, nil)

	dir := c.Join("photos/", "2025")
	require.True(t, c.CreateDirectory(context.Background(), dir))

	entries, err := c.List(context.Background(), c.Parent(dir))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].IsDir)
	assert.Equal(t, "2025/", entries[0].Name)
}

func TestS3PathHelpers(t *testing.T) {
	c := NewS3Connector(Options{})

	assert.Equal(t, "photos/a.jpg", c.Join("photos/", "a.jpg"))
	assert.Equal(t, "photos/2024/", c.Join("photos", "2024/"))
	assert.Equal(t, "a.jpg", c.Join("/", "a.jpg"))
	assert.Equal(t, "photos/", c.Parent("photos/2024/"))
	assert.Equal(t, "photos/", c.Parent("photos/a.jpg"))
	assert.Equal(t, "/", c.Parent("photos/"))
	assert.Equal(t, "/", c.Parent("/"))

	c.SetCurrentPath("/photos/2024")
	assert.Equal(t, "photos/2024/", c.CurrentPath(context.Background()))
	c.SetCurrentPath("/")
	assert.Equal(t, "/", c.CurrentPath(context.Background()))
}

func TestS3ListBuckets(t *testing.T) {
	client := &mockS3Client{}
	c := connectedS3(t, client, afero.NewMemMapFs())

	client.On("ListBuckets", mock.Anything, mock.Anything).Return(&s3.ListBucketsOutput{
		Buckets: []types.Bucket{{Name: aws.String("media")}, {Name: aws.String("backups")}},
	}, nil)

	names, err := c.ListBuckets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"media", "backups"}, names)
}

func TestS3ErrorKind(t *testing.T) {
	assert.Equal(t, ErrNotFound, s3ErrorKind(&smithy.GenericAPIError{Code: "NoSuchKey"}))
	assert.Equal(t, ErrPermission, s3ErrorKind(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.Nil(t, s3ErrorKind(errors.New("dial tcp: timeout")))
	assert.Equal(t, "SlowDown: Reduce your request rate.", s3ErrorMessage(&smithy.GenericAPIError{Code: "SlowDown", Message: "Reduce your request rate."}))
}
