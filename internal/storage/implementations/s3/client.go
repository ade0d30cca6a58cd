package s3

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/anonsearch/pkg/errors"
	"github.com/inferloop/anonsearch/pkg/models"
)

// S3Config holds configuration for S3 report storage
type S3Config struct {
	Region          string        `json:"region" mapstructure:"region"`
	Bucket          string        `json:"bucket" mapstructure:"bucket"`
	AccessKeyID     string        `json:"access_key_id" mapstructure:"access_key_id"`
	SecretAccessKey string        `json:"secret_access_key" mapstructure:"secret_access_key"`
	SessionToken    string        `json:"session_token,omitempty" mapstructure:"session_token"`
	Endpoint        string        `json:"endpoint,omitempty" mapstructure:"endpoint"`
	ForcePathStyle  bool          `json:"force_path_style" mapstructure:"force_path_style"`
	DisableSSL      bool          `json:"disable_ssl" mapstructure:"disable_ssl"`
	Prefix          string        `json:"prefix" mapstructure:"prefix"`
	Timeout         time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries      int           `json:"max_retries" mapstructure:"max_retries"`
	PartSize        int64         `json:"part_size" mapstructure:"part_size"`
	UseCompression  bool          `json:"use_compression" mapstructure:"use_compression"`
	StorageClass    string        `json:"storage_class" mapstructure:"storage_class"`
}

// S3Storage keeps one JSON object per search report
type S3Storage struct {
	config     *S3Config
	s3Client   *s3.S3
	uploader   *s3manager.Uploader
	downloader *s3manager.Downloader
	logger     *logrus.Logger
	mu         sync.RWMutex
	closed     bool
}

// reportObject is the stored envelope
type reportObject struct {
	Report    *models.SearchReport `json:"report"`
	Version   string               `json:"version"`
	CreatedAt time.Time            `json:"created_at"`
}

const objectVersion = "1"

// NewS3Storage creates a new S3 storage instance
func NewS3Storage(config *S3Config, logger *logrus.Logger) (*S3Storage, error) {
	if config == nil {
		return nil, errors.NewStorageError("INVALID_CONFIG", "S3 config cannot be nil")
	}

	if config.Bucket == "" {
		return nil, errors.NewStorageError("INVALID_CONFIG", "S3 bucket is required")
	}

	if logger == nil {
		logger = logrus.New()
	}

	return &S3Storage{
		config: config,
		logger: logger,
	}, nil
}

// Type returns the backend name
func (s *S3Storage) Type() string {
	return "s3"
}

// Connect establishes connection to S3
func (s *S3Storage) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.s3Client != nil {
		return nil
	}

	awsConfig := &aws.Config{
		Region:     aws.String(s.config.Region),
		MaxRetries: aws.Int(s.config.MaxRetries),
	}

	if s.config.AccessKeyID != "" && s.config.SecretAccessKey != "" {
		awsConfig.Credentials = credentials.NewStaticCredentials(
			s.config.AccessKeyID,
			s.config.SecretAccessKey,
			s.config.SessionToken,
		)
	}

	// S3-compatible services (MinIO, localstack)
	if s.config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(s.config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(s.config.ForcePathStyle)
	}

	if s.config.DisableSSL {
		awsConfig.DisableSSL = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return errors.WrapStorageError(err, errors.CodeConnectionFailed, "Failed to create AWS session")
	}

	client := s3.New(sess)
	if _, err := client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	}); err != nil {
		return errors.WrapStorageError(err, errors.CodeConnectionFailed,
			fmt.Sprintf("Failed to access bucket '%s'", s.config.Bucket))
	}

	s.s3Client = client
	s.uploader = s3manager.NewUploader(sess)
	s.downloader = s3manager.NewDownloader(sess)
	if s.config.PartSize > 0 {
		s.uploader.PartSize = s.config.PartSize
	}
	s.closed = false

	s.logger.WithFields(logrus.Fields{
		"region": s.config.Region,
		"bucket": s.config.Bucket,
	}).Info("Connected to S3")

	return nil
}

// Close closes the S3 connection
func (s *S3Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.s3Client = nil
	s.uploader = nil
	s.downloader = nil
	s.closed = true

	s.logger.Info("S3 connection closed")
	return nil
}

// Ping tests the S3 connection
func (s *S3Storage) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	if _, err := s.s3Client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.config.Bucket),
	}); err != nil {
		return errors.WrapStorageError(err, errors.CodeConnectionFailed, "S3 ping failed")
	}

	return nil
}

// Save uploads the report, gzip-compressed when configured
func (s *S3Storage) Save(ctx context.Context, report *models.SearchReport) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.uploader == nil {
		return errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	data, err := json.Marshal(&reportObject{
		Report:    report,
		Version:   objectVersion,
		CreatedAt: time.Now(),
	})
	if err != nil {
		return errors.WrapStorageError(err, errors.CodeWriteFailed, "Failed to serialize report")
	}

	if s.config.UseCompression {
		data, err = compress(data)
		if err != nil {
			return errors.WrapStorageError(err, errors.CodeWriteFailed, "Failed to compress report")
		}
	}

	input := &s3manager.UploadInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(s.generateKey(report.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		Metadata: map[string]*string{
			"search-id": aws.String(report.ID),
			"best-k":    aws.String(fmt.Sprintf("%d", report.BestK)),
			"best-l":    aws.String(fmt.Sprintf("%d", report.BestL)),
		},
	}
	if s.config.UseCompression {
		input.ContentEncoding = aws.String("gzip")
	}
	if s.config.StorageClass != "" {
		input.StorageClass = aws.String(s.config.StorageClass)
	}

	if _, err := s.uploader.UploadWithContext(ctx, input); err != nil {
		return errors.WrapStorageError(err, errors.CodeWriteFailed, "Failed to upload report to S3")
	}

	s.logger.WithFields(logrus.Fields{
		"report_id": report.ID,
		"bytes":     len(data),
	}).Debug("Stored report in S3")

	return nil
}

// Load downloads a report by ID
func (s *S3Storage) Load(ctx context.Context, id string) (*models.SearchReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.downloader == nil {
		return nil, errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	buf := aws.NewWriteAtBuffer([]byte{})
	_, err := s.downloader.DownloadWithContext(ctx, buf, &s3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.generateKey(id)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NewStorageError(errors.CodeReportNotFound, fmt.Sprintf("report %s not found", id))
		}
		return nil, errors.WrapStorageError(err, errors.CodeReadFailed, "Failed to download report from S3")
	}

	data := buf.Bytes()
	if s.config.UseCompression {
		data, err = decompress(data)
		if err != nil {
			return nil, errors.WrapStorageError(err, errors.CodeReadFailed, "Failed to decompress report")
		}
	}

	var object reportObject
	if err := json.Unmarshal(data, &object); err != nil {
		return nil, errors.WrapStorageError(err, errors.CodeReadFailed, "Failed to decode report")
	}
	if object.Report == nil {
		return nil, errors.NewStorageError(errors.CodeReadFailed, fmt.Sprintf("object for report %s holds no report", id))
	}

	return object.Report, nil
}

func (s *S3Storage) generateKey(id string) string {
	prefix := s.config.Prefix
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return path.Join(prefix, "reports", fmt.Sprintf("%s.json", id))
}

func (s *S3Storage) extractIDFromKey(key string) string {
	filename := path.Base(key)
	if !strings.HasSuffix(filename, ".json") {
		return ""
	}
	return strings.TrimSuffix(filename, ".json")
}

// List returns up to limit report IDs under the configured prefix
func (s *S3Storage) List(ctx context.Context, limit int64) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.s3Client == nil {
		return nil, errors.NewStorageError(errors.CodeConnectionFailed, "S3 not connected")
	}

	prefix := path.Dir(s.generateKey("x")) + "/"
	ids := make([]string, 0)
	err := s.s3Client.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, object := range page.Contents {
			if id := s.extractIDFromKey(aws.StringValue(object.Key)); id != "" {
				ids = append(ids, id)
				if limit > 0 && int64(len(ids)) >= limit {
					return false
				}
			}
		}
		return true
	})
	if err != nil {
		return nil, errors.WrapStorageError(err, errors.CodeReadFailed, "Failed to list reports")
	}

	return ids, nil
}

func isNotFound(err error) bool {
	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return strings.Contains(err.Error(), "NoSuchKey")
}

func compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(data); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decompress(data []byte) ([]byte, error) {
	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	return io.ReadAll(gz)
}
