package objectstore

import (
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/weberc2/vsfs/pkg/types"
)

type S3ObjectStore struct {
	Client *s3.S3
}

// NewS3ObjectStore builds a store from the ambient AWS configuration
// (environment, shared config files). `region` may be empty.
func NewS3ObjectStore(region string) (*S3ObjectStore, error) {
	config := aws.NewConfig()
	if region != "" {
		config = config.WithRegion(region)
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		Config:            *config,
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, fmt.Errorf("creating aws session: %w", err)
	}
	return &S3ObjectStore{Client: s3.New(sess)}, nil
}

func (os *S3ObjectStore) PutObject(bucket, key string, data io.ReadSeeker) error {
	if _, err := os.Client.PutObject(&s3.PutObjectInput{
		Bucket:      &bucket,
		Key:         &key,
		Body:        data,
		ContentType: aws.String("application/octet-stream"),
	}); err != nil {
		return fmt.Errorf(
			"putting object in bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return nil
}

func (os *S3ObjectStore) GetObject(bucket, key string) (io.ReadCloser, error) {
	rsp, err := os.Client.GetObject(&s3.GetObjectInput{
		Bucket: &bucket,
		Key:    &key,
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, &types.ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return nil, fmt.Errorf(
			"getting object from bucket `%s` at key `%s`: %w",
			bucket,
			key,
			err,
		)
	}
	return rsp.Body, nil
}

func (os *S3ObjectStore) ListObjects(bucket, prefix string) ([]string, error) {
	keys := []string{}
	if err := os.Client.ListObjectsPages(
		&s3.ListObjectsInput{
			Bucket: &bucket,
			Prefix: &prefix,
		},
		func(rsp *s3.ListObjectsOutput, lastPage bool) bool {
			for _, object := range rsp.Contents {
				keys = append(keys, aws.StringValue(object.Key))
			}
			return true
		},
	); err != nil {
		return keys, fmt.Errorf(
			"listing objects in bucket `%s` with prefix `%s`: %w",
			bucket,
			prefix,
			err,
		)
	}
	return keys, nil
}

// DeleteObject removes `key`. S3 does not report missing keys on delete, so
// the object is checked first to keep `ObjectNotFoundErr` semantics.
func (os *S3ObjectStore) DeleteObject(bucket, key string) error {
	if _, err := os.Client.HeadObject(&s3.HeadObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		if isNoSuchKey(err) {
			return &types.ObjectNotFoundErr{Bucket: bucket, Key: key}
		}
		return fmt.Errorf("deleting object `%s`: %w", key, err)
	}
	if _, err := os.Client.DeleteObject(&s3.DeleteObjectInput{
		Bucket: &bucket,
		Key:    &key,
	}); err != nil {
		return fmt.Errorf("deleting object `%s`: %w", key, err)
	}
	return nil
}

func isNoSuchKey(err error) bool {
	if err, ok := err.(awserr.Error); ok {
		// HeadObject has no body, so a missing key surfaces as `NotFound`
		return err.Code() == s3.ErrCodeNoSuchKey || err.Code() == "NotFound"
	}
	return false
}

var _ types.ObjectStore = &S3ObjectStore{}
