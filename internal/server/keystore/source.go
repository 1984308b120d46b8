package keystore

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// maxKeyringSize caps how much of a keyring object is read.
const maxKeyringSize = 1 << 20

// Source loads a keyring.
type Source interface {
	Load(ctx context.Context) (*Keyring, error)
}

// StaticSource builds a single-key HS256 keyring from a configured secret.
type StaticSource struct {
	Secret string
	KID    string
}

func (s StaticSource) Load(ctx context.Context) (*Keyring, error) {
	kr := &Keyring{
		Algorithm: AlgorithmHS256,
		ActiveKID: s.KID,
		Keys:      map[string][]byte{s.KID: []byte(s.Secret)},
	}
	if err := kr.Validate(); err != nil {
		return nil, err
	}
	return kr, nil
}

// FileSource reads a JSON keyring document from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Load(ctx context.Context) (*Keyring, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("error reading keyring file: %w", err)
	}
	return Parse(data)
}

// S3Config locates a keyring object in an S3-compatible store.
type S3Config struct {
	Region       string
	BaseEndpoint string
	AccessKey    string
	SecretKey    string
	Bucket       string
	Key          string
}

type objectGetter interface {
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3Client = func(cfg aws.Config, optFns ...func(*s3.Options)) objectGetter {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// S3Source fetches a JSON keyring document with GetObject.
type S3Source struct {
	cfg S3Config
}

func NewS3Source(cfg S3Config) *S3Source {
	return &S3Source{cfg: cfg}
}

func (s *S3Source) client(ctx context.Context) (objectGetter, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(s.cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			s.cfg.AccessKey,
			s.cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	return newS3Client(cfg, func(o *s3.Options) {
		if s.cfg.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(s.cfg.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

func (s *S3Source) Load(ctx context.Context) (*Keyring, error) {
	c, err := s.client(ctx)
	if err != nil {
		return nil, fmt.Errorf("error configuring s3 client: %w", err)
	}

	out, err := c.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(s.cfg.Key),
	})
	if err != nil {
		return nil, fmt.Errorf("error fetching keyring s3://%s/%s: %w", s.cfg.Bucket, s.cfg.Key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, maxKeyringSize))
	if err != nil {
		return nil, fmt.Errorf("error reading keyring object: %w", err)
	}
	return Parse(data)
}
