package storage

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	smithy "github.com/aws/smithy-go"

	"github.com/arm-trusted-services/ts-core/pkg/variable/efistatus"
)

// S3 is an aws-sdk-go-v2/service/s3-backed Backend, an alternate
// persistent-store backend selectable in place of Badger. There is no
// multipart upload or write buffering here; variable objects are at most
// a few KB.
type S3 struct {
	client    *s3.Client
	bucket    string
	keyPrefix string
}

// S3Config configures a new S3 backend.
type S3Config struct {
	Client          *s3.Client
	Bucket          string
	KeyPrefix       string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	ForcePathStyle  bool
}

// NewS3Client builds an s3.Client from static credentials, matching
// NewS3ClientFromConfig's parameter shape.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = &cfg.Endpoint
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return client, nil
}

// NewS3 wraps an already-constructed s3.Client as a Backend, verifying
// bucket access up front, matching NewS3ContentStore's bucket-head check.
func NewS3(ctx context.Context, cfg S3Config) (*S3, error) {
	if cfg.Client == nil {
		return nil, fmt.Errorf("storage: s3 client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("storage: s3 bucket is required")
	}

	if _, err := cfg.Client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)}); err != nil {
		return nil, fmt.Errorf("storage: access bucket %q: %w", cfg.Bucket, err)
	}

	return &S3{client: cfg.Client, bucket: cfg.Bucket, keyPrefix: cfg.KeyPrefix}, nil
}

func (s *S3) objectKey(ownerID uint32, uid uint64) string {
	return fmt.Sprintf("%s%08x/%016x", s.keyPrefix, ownerID, uid)
}

// The 4-byte flags word is stored hex-encoded in a single custom S3 object metadata header
// rather than prefixed into the body, since S3 objects are fetched whole
// (no partial-range decode needed to recover flags).
const flagsMetadataKey = "ts-variable-flags"

func (s *S3) Set(ctx context.Context, ownerID uint32, uid uint64, data []byte, flags Flags) efistatus.PSAStatus {
	key := s.objectKey(ownerID, uid)

	if existing, status := s.GetInfo(ctx, ownerID, uid); status == efistatus.PSASuccess && existing.Flags&FlagWriteOnce != 0 {
		return efistatus.PSAErrorNotPermitted
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(key),
		Body:     bytes.NewReader(data),
		Metadata: map[string]string{flagsMetadataKey: flagsToString(flags)},
	})
	return s3Status(err)
}

func (s *S3) Get(ctx context.Context, ownerID uint32, uid uint64, offset int, dst []byte) (int, efistatus.PSAStatus) {
	key := s.objectKey(ownerID, uid)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return 0, s3Status(err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return 0, efistatus.PSAErrorStorageFailure
	}
	if offset > len(data) {
		return 0, efistatus.PSAErrorInvalidArgument
	}

	return copy(dst, data[offset:]), efistatus.PSASuccess
}

func (s *S3) GetInfo(ctx context.Context, ownerID uint32, uid uint64) (ObjectInfo, efistatus.PSAStatus) {
	key := s.objectKey(ownerID, uid)
	info := ObjectInfo{UID: uid, OwnerID: ownerID}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return info, s3Status(err)
	}

	if out.ContentLength != nil {
		info.Size = int(*out.ContentLength)
	}
	info.Flags = flagsFromString(out.Metadata[flagsMetadataKey])
	return info, efistatus.PSASuccess
}

func (s *S3) Remove(ctx context.Context, ownerID uint32, uid uint64) efistatus.PSAStatus {
	if _, status := s.GetInfo(ctx, ownerID, uid); status != efistatus.PSASuccess {
		return status
	}

	key := s.objectKey(ownerID, uid)
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	return s3Status(err)
}

func (s *S3) Create(ctx context.Context, ownerID uint32, uid uint64, size int, flags Flags) efistatus.PSAStatus {
	return s.Set(ctx, ownerID, uid, make([]byte, size), flags)
}

func (s *S3) SetExtended(ctx context.Context, ownerID uint32, uid uint64, offset int, data []byte) efistatus.PSAStatus {
	key := s.objectKey(ownerID, uid)

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(s.bucket), Key: aws.String(key)})
	var existing []byte
	var flags Flags
	if err == nil {
		defer out.Body.Close()
		existing, err = io.ReadAll(out.Body)
		if err != nil {
			return efistatus.PSAErrorStorageFailure
		}
		flags = flagsFromString(out.Metadata[flagsMetadataKey])
	} else if !isNotFound(err) {
		return s3Status(err)
	}

	if offset+len(data) > len(existing) {
		grown := make([]byte, offset+len(data))
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:], data)

	return s.Set(ctx, ownerID, uid, existing, flags)
}

func (s *S3) GetSupport(_ context.Context, _ uint32, _ uint64) (Flags, efistatus.PSAStatus) {
	return FlagWriteOnce | FlagNoConfidentiality, efistatus.PSASuccess
}

func flagsToString(f Flags) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(f))
	return fmt.Sprintf("%x", b)
}

func flagsFromString(s string) Flags {
	var v uint32
	_, _ = fmt.Sscanf(s, "%x", &v)
	return Flags(v)
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

func s3Status(err error) efistatus.PSAStatus {
	switch {
	case err == nil:
		return efistatus.PSASuccess
	case isNotFound(err):
		return efistatus.PSAErrorDoesNotExist
	default:
		return efistatus.PSAErrorStorageFailure
	}
}
