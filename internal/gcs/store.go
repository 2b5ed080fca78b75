// Package gcs provides scoped access to Google Cloud Storage objects.
//
// Every Open returns a Store bound to a fresh client; callers close it before
// returning so that no connection outlives the call that needed it.
package gcs

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
	"pubsub2inbox/internal/common/errors"
)

// Scheme is the only URL scheme accepted for object references
const Scheme = "gs"

// Store reads and writes objects through one client session
type Store interface {
	// Read returns length bytes starting at offset; a negative length reads
	// to the end of the object
	Read(ctx context.Context, bucket, object string, offset, length int64) ([]byte, error)
	SignedURL(ctx context.Context, bucket, object string, expires time.Time) (string, error)
	Write(ctx context.Context, bucket, object string, contents []byte, contentType string) error
	Close() error
}

// Opener creates Store sessions
type Opener interface {
	Open(ctx context.Context) (Store, error)
}

// Config holds credentials for the client opener. Empty values fall back to
// Application Default Credentials.
type Config struct {
	CredentialsJSON string
	CredentialsPath string
}

// ClientOpener opens Cloud Storage clients
type ClientOpener struct {
	opts []option.ClientOption
}

// NewClientOpener creates an opener using the given credentials
func NewClientOpener(config Config, extra ...option.ClientOption) *ClientOpener {
	var opts []option.ClientOption
	if config.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(config.CredentialsJSON)))
	} else if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}
	opts = append(opts, extra...)
	return &ClientOpener{opts: opts}
}

// Open creates a new storage client
func (o *ClientOpener) Open(ctx context.Context) (Store, error) {
	client, err := storage.NewClient(ctx, o.opts...)
	if err != nil {
		return nil, errors.ConnectionError("failed to create storage client", err)
	}
	return &clientStore{client: client}, nil
}

type clientStore struct {
	client *storage.Client
}

func (s *clientStore) Read(ctx context.Context, bucket, object string, offset, length int64) ([]byte, error) {
	reader, err := s.client.Bucket(bucket).Object(object).NewRangeReader(ctx, offset, length)
	if err != nil {
		if stderrors.Is(err, storage.ErrObjectNotExist) || stderrors.Is(err, storage.ErrBucketNotExist) {
			return nil, errors.ObjectNotFoundError(bucket, object)
		}
		return nil, errors.ConnectionError(fmt.Sprintf("failed to open gs://%s/%s", bucket, object), err)
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.ConnectionError(fmt.Sprintf("failed to read gs://%s/%s", bucket, object), err)
	}
	return data, nil
}

func (s *clientStore) SignedURL(ctx context.Context, bucket, object string, expires time.Time) (string, error) {
	signed, err := s.client.Bucket(bucket).SignedURL(object, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: expires,
	})
	if err != nil {
		return "", errors.InternalError(fmt.Sprintf("failed to sign gs://%s/%s", bucket, object), err)
	}
	return signed, nil
}

func (s *clientStore) Write(ctx context.Context, bucket, object string, contents []byte, contentType string) error {
	writer := s.client.Bucket(bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := writer.Write(contents); err != nil {
		_ = writer.Close()
		return errors.ConnectionError(fmt.Sprintf("failed to write gs://%s/%s", bucket, object), err)
	}
	if err := writer.Close(); err != nil {
		return errors.ConnectionError(fmt.Sprintf("failed to finalize gs://%s/%s", bucket, object), err)
	}
	return nil
}

func (s *clientStore) Close() error {
	return s.client.Close()
}

// ParseURL splits a gs://bucket/object reference. Any other scheme fails with
// an invalid scheme error attributed to fn.
func ParseURL(fn, raw string) (bucket, object string, err error) {
	parsed, perr := url.Parse(raw)
	if perr != nil {
		return "", "", errors.ValidationError(fmt.Sprintf("invalid URL for %s(%s): %v", fn, raw, perr))
	}
	if parsed.Scheme != Scheme {
		return "", "", errors.InvalidSchemeError(fn, raw, parsed.Scheme)
	}
	object = strings.TrimPrefix(parsed.Path, "/")
	if parsed.Host == "" || object == "" {
		return "", "", errors.ValidationError(fmt.Sprintf("%s(%s): URL must name a bucket and an object", fn, raw))
	}
	return parsed.Host, object, nil
}

// With opens a store, runs fn and closes the store before returning
func With(ctx context.Context, opener Opener, fn func(Store) error) error {
	store, err := opener.Open(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}
