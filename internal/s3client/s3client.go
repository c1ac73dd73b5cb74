package s3client

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type S3Client struct {
	client *s3.Client
}

// Object is a single listed object: its key and size in bytes.
type Object struct {
	Key  string
	Size int64
}

var (
	ErrNotFound  = errors.New("not found")
	ErrNoSuchKey = errors.New("no such key")
)

func getTLSClient(caCertFileName string) (*http.Client, error) {
	cert, err := os.ReadFile(caCertFileName)
	if err != nil {
		return nil, err
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		return nil, err
	}

	if !caCertPool.AppendCertsFromPEM(cert) {
		return nil, fmt.Errorf("failed to add ca cert: cert=%v", cert)
	}

	defaultTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, fmt.Errorf("invalid default transport")
	}

	transport := defaultTransport.Clone()

	transport.TLSClientConfig = &tls.Config{
		RootCAs: caCertPool,
	}

	client := &http.Client{
		Transport: transport,
	}

	return client, nil
}

func NewS3Client(endpoint, caCertFileName string) *S3Client {
	s := &S3Client{}
	var cfg aws.Config
	var err error
	client := http.DefaultClient

	if caCertFileName != "" {
		client, err = getTLSClient(caCertFileName)
		if err != nil {
			log.Fatal(err)
		}
	}
	if endpoint != "" {
		customResolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
			return aws.Endpoint{
				PartitionID:       "aws",
				URL:               endpoint,
				SigningRegion:     region,
				HostnameImmutable: true,
			}, nil
		})
		cfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithEndpointResolverWithOptions(customResolver),
			config.WithHTTPClient(client))
		if err != nil {
			log.Fatal(err)
		}
	} else {
		cfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithHTTPClient(client))
		if err != nil {
			log.Fatal(err)
		}
	}

	s.client = s3.NewFromConfig(cfg)

	return s
}

func (s *S3Client) HeadBucket(ctx context.Context, bucketName string) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: &bucketName,
	})
	if err != nil {
		var nf *types.NotFound
		if errors.As(err, &nf) {
			err = errors.Join(err, ErrNotFound)
		}
		return err
	}
	return nil
}

// ListObjects returns every object under the prefix in the order the
// store lists them, following continuation tokens to the end.
func (s *S3Client) ListObjects(ctx context.Context, bucketName, prefix string) ([]Object, error) {
	var continuationToken *string = nil
	objects := make([]Object, 0)
	for {
		listRes, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            &bucketName,
			ContinuationToken: continuationToken,
			Prefix:            &prefix,
		})
		if err != nil {
			return nil, err
		}
		for _, obj := range listRes.Contents {
			var size int64
			if obj.Size != nil {
				size = *obj.Size
			}
			objects = append(objects, Object{
				Key:  *obj.Key,
				Size: size,
			})
		}

		if listRes.NextContinuationToken == nil {
			break
		}
		continuationToken = listRes.NextContinuationToken
	}
	return objects, nil
}

// CopyObject performs a server-side copy within the bucket.
func (s *S3Client) CopyObject(ctx context.Context, bucketName, srcKey, dstKey string) error {
	copySource := url.PathEscape(bucketName + "/" + srcKey)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     &bucketName,
		CopySource: &copySource,
		Key:        &dstKey,
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			err = errors.Join(err, ErrNoSuchKey)
		}
		return err
	}
	return nil
}

func (s *S3Client) DeleteObject(ctx context.Context, bucketName, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: &bucketName,
		Key:    &key,
	})
	if err != nil {
		return err
	}
	return nil
}
