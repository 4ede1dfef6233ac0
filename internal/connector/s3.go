package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/sirupsen/logrus"

	"github.com/HaiFongPan/ducktransfer/internal/utils"
)

const (
	s3TimeLayout    = "2006-01-02 15:04"
	s3DefaultRegion = "us-east-1"
	s3Delimiter     = "/"
)

// s3API is the subset of the S3 client used by the connector. It embeds the
// uploader's client interface so a single mock serves both.
type s3API interface {
	manager.UploadAPIClient
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

type s3ClientFunc func(ctx context.Context, cfg Config) (s3API, error)

// S3Connector maps the directory model onto "/"-delimited key prefixes of a
// single bucket. The current path is tracked locally.
type S3Connector struct {
	opts      Options
	newClient s3ClientFunc
	client    s3API
	bucket    string
	prefix    string
}

var (
	_ Connector = (*S3Connector)(nil)
	_ Cursor    = (*S3Connector)(nil)
)

// NewS3Connector creates an unconnected S3 connector.
func NewS3Connector(opts Options) *S3Connector {
	return &S3Connector{
		opts:      opts.withDefaults(),
		newClient: newS3Client,
	}
}

func newS3Client(ctx context.Context, cfg Config) (s3API, error) {
	region := cfg.Region
	if region == "" {
		region = s3DefaultRegion
	}
	loadOpts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (c *S3Connector) Protocol() Protocol { return ProtocolS3 }

// Connect builds the client and checks that the bucket is reachable.
func (c *S3Connector) Connect(ctx context.Context, cfg Config) error {
	c.Disconnect()
	if err := cfg.Validate(); err != nil {
		return newConnectionError(ProtocolS3, cfg.Address(), err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	client, err := c.newClient(ctx, cfg)
	if err != nil {
		return newConnectionError(ProtocolS3, cfg.Address(), err)
	}
	if cfg.Bucket != "" {
		if _, err := client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
			return newConnectionError(ProtocolS3, cfg.Address(), errors.New(s3ErrorMessage(err)))
		}
	}
	c.client = client
	c.bucket = cfg.Bucket
	c.prefix = ""
	logrus.WithFields(logrus.Fields{"bucket": cfg.Bucket, "endpoint": cfg.Endpoint}).Info("Connected")
	return nil
}

// Disconnect drops the client. S3 holds no session, so this cannot fail.
func (c *S3Connector) Disconnect() {
	c.client = nil
	c.prefix = ""
}

func (c *S3Connector) IsConnected() bool {
	return c.client != nil
}

// Bucket returns the bucket the connector is bound to.
func (c *S3Connector) Bucket() string {
	return c.bucket
}

// List synthesizes a directory view of the keys under p. Common prefixes
// become directory entries named "<segment>/"; directory marker objects are
// hidden.
func (c *S3Connector) List(ctx context.Context, p string) ([]Entry, error) {
	if c.client == nil {
		return nil, notConnected("list", p)
	}
	prefix := c.prefix
	if p != "" {
		prefix = toS3Prefix(p)
	}

	paginator := s3.NewListObjectsV2Paginator(c.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(c.bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String(s3Delimiter),
	})

	var entries []Entry
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, newOperationError("list", displayS3Path(prefix), errors.New(s3ErrorMessage(err)), s3ErrorKind(err))
		}
		for _, cp := range page.CommonPrefixes {
			full := aws.ToString(cp.Prefix)
			name := strings.TrimPrefix(full, prefix)
			if name == "" || name == s3Delimiter {
				continue
			}
			entries = append(entries, Entry{Name: name, Path: full, IsDir: true})
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix || strings.HasSuffix(key, s3Delimiter) {
				continue
			}
			e := Entry{
				Name: strings.TrimPrefix(key, prefix),
				Path: key,
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				e.Modified = obj.LastModified.Format(s3TimeLayout)
			}
			entries = append(entries, e)
		}
	}
	c.prefix = prefix
	return finalize(entries), nil
}

func (c *S3Connector) Download(ctx context.Context, remotePath, localPath string, progress ProgressFunc) error {
	if c.client == nil {
		return notConnected("download", remotePath)
	}
	key := strings.TrimPrefix(remotePath, "/")
	out, err := c.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return newOperationError("download", remotePath, errors.New(s3ErrorMessage(err)), s3ErrorKind(err))
	}
	defer out.Body.Close()

	f, err := createLocalFile(c.opts.LocalFS, localPath)
	if err != nil {
		return newOperationError("download", localPath, err, nil)
	}
	defer f.Close()

	tracker := newProgressTracker(progress, aws.ToInt64(out.ContentLength)).withContext(ctx)
	if _, err := copyWithProgress(f, out.Body, c.opts.ChunkSize, tracker); err != nil {
		return newOperationError("download", remotePath, err, nil)
	}
	tracker.finish()
	logrus.WithFields(logrus.Fields{"bucket": c.bucket, "key": key, "local": localPath}).Info("Downloaded")
	return nil
}

// Upload sends the file through the multipart uploader. The uploader's own
// reads may undercount, so a final (total,total) is always reported.
func (c *S3Connector) Upload(ctx context.Context, localPath, remotePath string, progress ProgressFunc) error {
	if c.client == nil {
		return notConnected("upload", remotePath)
	}
	f, size, err := openLocalFile(c.opts.LocalFS, localPath)
	if err != nil {
		return newOperationError("upload", localPath, err, nil)
	}
	defer f.Close()

	key := strings.TrimPrefix(remotePath, "/")
	uploader := manager.NewUploader(c.client, func(u *manager.Uploader) {
		if c.opts.S3PartSize > 0 {
			u.PartSize = c.opts.S3PartSize
		}
		if c.opts.S3Concurrency > 0 {
			u.Concurrency = c.opts.S3Concurrency
		}
	})

	tracker := newProgressTracker(progress, size).withContext(ctx)
	// body has no Seek, so the uploader buffers each part and retries are not re-counted.
	body := &progressReader{r: f, t: tracker}
	if _, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(utils.DetectContentType(key)),
	}); err != nil {
		return newOperationError("upload", remotePath, errors.New(s3ErrorMessage(err)), s3ErrorKind(err))
	}
	tracker.finish()
	logrus.WithFields(logrus.Fields{"bucket": c.bucket, "key": key, "local": localPath}).Info("Uploaded")
	return nil
}

// Delete removes the object at p. A missing object counts as a failure.
func (c *S3Connector) Delete(ctx context.Context, p string) bool {
	if c.client == nil {
		return false
	}
	key := strings.TrimPrefix(p, "/")
	log := logrus.WithFields(logrus.Fields{"bucket": c.bucket, "key": key})
	if _, err := c.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		log.Warnf("Delete failed: %s", s3ErrorMessage(err))
		return false
	}
	if _, err := c.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	}); err != nil {
		log.Warnf("Delete failed: %s", s3ErrorMessage(err))
		return false
	}
	return true
}

// CreateDirectory writes the zero-byte "<p>/" marker object.
func (c *S3Connector) CreateDirectory(ctx context.Context, p string) bool {
	if c.client == nil {
		return false
	}
	key := toS3Prefix(p)
	if key == "" {
		return false
	}
	if _, err := c.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(""),
	}); err != nil {
		logrus.WithFields(logrus.Fields{"bucket": c.bucket, "key": key}).Warnf("mkdir failed: %s", s3ErrorMessage(err))
		return false
	}
	return true
}

// CurrentPath returns the locally tracked prefix, "/" at the bucket root.
func (c *S3Connector) CurrentPath(ctx context.Context) string {
	return displayS3Path(c.prefix)
}

// SetCurrentPath moves the tracked prefix without listing.
func (c *S3Connector) SetCurrentPath(p string) {
	c.prefix = toS3Prefix(p)
}

// Join appends name to a prefix. Directory names keep their trailing "/".
func (c *S3Connector) Join(dir, name string) string {
	return toS3Prefix(dir) + strings.TrimPrefix(name, "/")
}

// Parent strips the last segment of a key or prefix.
func (c *S3Connector) Parent(p string) string {
	trimmed := strings.TrimSuffix(strings.TrimPrefix(p, "/"), "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return "/"
	}
	return trimmed[:i+1]
}

// ListBuckets returns the names of all buckets visible to the credentials.
func (c *S3Connector) ListBuckets(ctx context.Context) ([]string, error) {
	if c.client == nil {
		return nil, notConnected("list buckets", "")
	}
	out, err := c.client.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, newOperationError("list buckets", "", errors.New(s3ErrorMessage(err)), s3ErrorKind(err))
	}
	names := make([]string, 0, len(out.Buckets))
	for _, b := range out.Buckets {
		names = append(names, aws.ToString(b.Name))
	}
	return names, nil
}

// toS3Prefix turns a display path into a key prefix: no leading "/", a
// trailing "/" unless it is the bucket root.
func toS3Prefix(p string) string {
	p = strings.TrimLeft(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasSuffix(p, s3Delimiter) {
		p += s3Delimiter
	}
	return p
}

func displayS3Path(prefix string) string {
	if prefix == "" {
		return "/"
	}
	return prefix
}

func s3ErrorMessage(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if msg := apiErr.ErrorMessage(); msg != "" {
			return fmt.Sprintf("%s: %s", apiErr.ErrorCode(), msg)
		}
		return apiErr.ErrorCode()
	}
	return err.Error()
}

func s3ErrorKind(err error) error {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound", "NoSuchBucket":
		return ErrNotFound
	case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return ErrPermission
	}
	return nil
}
