/*
Copyright (C) 2026  Markovchain Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package chainstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/launix-de/markovchain/errs"
)

// S3SnapshotStore persists snapshots as objects under
// <prefix>/markov_<tenantId>.json in an S3-compatible bucket. S3 has
// no append or atomic-rename primitive, so a write is a single
// PutObject that replaces the object outright; S3 guarantees
// read-after-write consistency on that replace, which stands in for
// the local backend's rename. Grounded on the teacher's S3Storage.
type S3SnapshotStore struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Endpoint        string
	Bucket          string
	Prefix          string
	ForcePathStyle  bool

	mu     sync.Mutex
	client *s3.Client
}

func (s *S3SnapshotStore) key(tenantID string) string {
	pfx := strings.TrimSuffix(s.Prefix, "/")
	if pfx == "" {
		return fmt.Sprintf("markov_%s.json", tenantID)
	}
	return pfx + "/" + fmt.Sprintf("markov_%s.json", tenantID)
}

func (s *S3SnapshotStore) ensureClient() (*s3.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}

	ctx := context.Background()
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	if s.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s.AccessKeyID, s.SecretAccessKey, ""),
		))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "loading aws config", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			o.BaseEndpoint = aws.String(s.Endpoint)
		}
		o.UsePathStyle = s.ForcePathStyle
	})
	s.client = client
	return client, nil
}

func (s *S3SnapshotStore) ReadSnapshot(tenantID string) ([]byte, error) {
	client, err := s.ensureClient()
	if err != nil {
		return nil, err
	}
	out, err := client.GetObject(context.Background(), &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(tenantID)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, errs.Wrap(errs.NotFound, "no snapshot for tenant "+tenantID, err)
		}
		return nil, errs.Wrap(errs.Io, "reading s3 snapshot for tenant "+tenantID, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errs.Wrap(errs.Io, "reading s3 snapshot body for tenant "+tenantID, err)
	}
	return data, nil
}

func (s *S3SnapshotStore) WriteSnapshot(tenantID string, data []byte) error {
	client, err := s.ensureClient()
	if err != nil {
		return err
	}
	_, err = client.PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(tenantID)),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return errs.Wrap(errs.Io, "writing s3 snapshot for tenant "+tenantID, err)
	}
	return nil
}

func (s *S3SnapshotStore) Remove(tenantID string) error {
	client, err := s.ensureClient()
	if err != nil {
		return err
	}
	_, err = client.DeleteObject(context.Background(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.key(tenantID)),
	})
	if err != nil {
		return errs.Wrap(errs.Io, "removing s3 snapshot for tenant "+tenantID, err)
	}
	return nil
}
