package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config addresses a bucket on any S3-compatible service.
type S3Config struct {
	Endpoint  string // host:port, no scheme
	Bucket    string
	Prefix    string
	Region    string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// S3 is a Backend over an S3 bucket. The orchestrator's access token is
// passed as the STS session token so short-lived credentials rotate with it.
// Locators are object keys.
type S3 struct {
	cfg S3Config

	mu     sync.Mutex
	token  string
	client *minio.Client
}

var _ Backend = (*S3)(nil)

// NewS3 validates cfg and returns an S3 backend. No request is made until first use.
func NewS3(cfg S3Config) (*S3, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("remote: s3 endpoint and bucket are required")
	}
	cfg.Endpoint = strings.TrimPrefix(strings.TrimPrefix(cfg.Endpoint, "https://"), "http://")
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &S3{cfg: cfg}, nil
}

// clientFor returns a client signed with token, reusing the previous one
// while the token is unchanged.
func (s *S3) clientFor(token string) (*minio.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil && s.token == token {
		return s.client, nil
	}
	c, err := minio.New(s.cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.cfg.AccessKey, s.cfg.SecretKey, token),
		Secure: s.cfg.UseSSL,
		Region: s.cfg.Region,
	})
	if err != nil {
		return nil, &Error{Kind: KindTransient, Op: "client", Err: err}
	}
	s.client, s.token = c, token
	return c, nil
}

func (s *S3) key(name string) string {
	if s.cfg.Prefix == "" {
		return name
	}
	return path.Join(s.cfg.Prefix, name)
}

func (s *S3) Find(ctx context.Context, token, name string) (string, bool, error) {
	key := s.key(name)
	err := s.Stat(ctx, token, key)
	if IsNotFound(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return key, true, nil
}

func (s *S3) Create(ctx context.Context, token, name string) (string, error) {
	key := s.key(name)
	if err := s.Write(ctx, token, key, nil); err != nil {
		return "", err
	}
	return key, nil
}

func (s *S3) Stat(ctx context.Context, token, loc string) error {
	c, err := s.clientFor(token)
	if err != nil {
		return err
	}
	if _, err := c.StatObject(ctx, s.cfg.Bucket, loc, minio.StatObjectOptions{}); err != nil {
		return s3Error("stat", err)
	}
	return nil
}

func (s *S3) Read(ctx context.Context, token, loc string) ([]byte, error) {
	c, err := s.clientFor(token)
	if err != nil {
		return nil, err
	}
	obj, err := c.GetObject(ctx, s.cfg.Bucket, loc, minio.GetObjectOptions{})
	if err != nil {
		return nil, s3Error("read", err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, s3Error("read", err)
	}
	return data, nil
}

func (s *S3) Write(ctx context.Context, token, loc string, data []byte) error {
	c, err := s.clientFor(token)
	if err != nil {
		return err
	}
	_, err = c.PutObject(ctx, s.cfg.Bucket, loc, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "text/markdown; charset=utf-8",
	})
	if err != nil {
		return s3Error("write", err)
	}
	return nil
}

func s3Error(op string, err error) *Error {
	resp := minio.ToErrorResponse(err)
	status := resp.StatusCode
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket":
		status = http.StatusNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "ExpiredToken", "InvalidToken":
		status = http.StatusForbidden
	}
	return newError(op, status, err)
}
