package aws

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"sort"
	"strings"

	"github.com/PhuocnhQn/photo-frame-editor/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/sirupsen/logrus"
)

type s3Store struct {
	s3Client *s3.Client
	bucket   string
}

// NewAssetStore creates a new S3-based store. Objects are keyed kind/name.
func NewAssetStore(bucketName string) core.AssetStore {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}

	return &s3Store{
		s3Client: s3.NewFromConfig(cfg),
		bucket:   bucketName,
	}
}

func (s *s3Store) key(kind core.AssetKind, name string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown asset kind %q", kind)
	}
	if name == "" || name == "." || name == ".." || path.Base(name) != name {
		return "", fmt.Errorf("invalid asset name %q", name)
	}
	return path.Join(string(kind), name), nil
}

func isNotFound(err error) bool {
	var nsk *s3types.NoSuchKey
	var nf *s3types.NotFound
	return errors.As(err, &nsk) || errors.As(err, &nf)
}

func (s *s3Store) Put(ctx context.Context, kind core.AssetKind, name string, data []byte) error {
	key, err := s.key(kind, name)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %v", key, err)
	}
	logrus.WithFields(logrus.Fields{"key": key, "data_length": len(data)}).Debug("Asset uploaded to S3")
	return nil
}

func (s *s3Store) Get(ctx context.Context, kind core.AssetKind, name string) (*core.Asset, error) {
	key, err := s.key(kind, name)
	if err != nil {
		return nil, err
	}
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%s: %w", key, core.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get %s: %v", key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %v", key, err)
	}

	asset := &core.Asset{Kind: kind, Name: name, Data: data}
	if resp.LastModified != nil {
		asset.CreatedAt = *resp.LastModified
	}
	return asset, nil
}

func (s *s3Store) List(ctx context.Context, kind core.AssetKind) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown asset kind %q", kind)
	}
	prefix := string(kind) + "/"

	names := []string{}
	p := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list %s: %v", kind, err)
		}
		for _, object := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(object.Key), prefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *s3Store) Delete(ctx context.Context, kind core.AssetKind, name string) error {
	key, err := s.key(kind, name)
	if err != nil {
		return err
	}
	// DeleteObject succeeds for missing keys, so check existence first.
	_, err = s.s3Client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			return fmt.Errorf("%s: %w", key, core.ErrNotFound)
		}
		return fmt.Errorf("failed to stat %s: %v", key, err)
	}

	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete %s: %v", key, err)
	}
	logrus.WithField("key", key).Info("Asset deleted from S3")
	return nil
}
