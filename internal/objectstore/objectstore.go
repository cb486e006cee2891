// Package objectstore is the gateway to the bucket the pipeline scans.
//
// Drivers live in sub-packages (s3, minio). Both return object locations in
// the s3://bucket/key form and classify their errors into the sentinels below.
package objectstore

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"s3-etl-pipeline/internal/entity"
)

var (
	ErrNotFound        = errors.New("object store: not found")
	ErrAccessDenied    = errors.New("object store: access denied")
	ErrTransient       = errors.New("object store: transient failure")
	ErrInvalidLocation = errors.New("object store: invalid location")
)

const scheme = "s3://"

type Gateway interface {
	// List returns every object under prefix modified at or after since.
	// Pagination is drained before returning.
	List(ctx context.Context, prefix string, since time.Time) ([]entity.ObjectInfo, error)
	// StreamRows opens a delimited object; the first row is the header.
	StreamRows(ctx context.Context, location string) (*RowReader, error)
	// BucketExists is used by the setup routine.
	BucketExists(ctx context.Context) (bool, error)
}

// Location builds the s3://bucket/key form used in job records.
func Location(bucket, key string) string {
	if key == "" {
		return scheme + bucket
	}
	return scheme + bucket + "/" + key
}

// ParseLocation splits an s3://bucket/key location.
func ParseLocation(location string) (bucket, key string, err error) {
	if !strings.HasPrefix(location, scheme) {
		return "", "", fmt.Errorf("%w: %q is not an s3 path", ErrInvalidLocation, location)
	}
	rest := strings.TrimPrefix(location, scheme)
	bucket, key, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q has no key", ErrInvalidLocation, location)
	}
	return bucket, key, nil
}

// RowReader yields header-keyed records from a CSV body. It reads once and
// cannot be restarted.
type RowReader struct {
	body    io.ReadCloser
	reader  *csv.Reader
	headers []string
}

func NewRowReader(body io.ReadCloser) (*RowReader, error) {
	r := csv.NewReader(body)
	r.FieldsPerRecord = -1

	headers, err := r.Read()
	if err == io.EOF {
		return &RowReader{body: body, reader: r}, nil
	}
	if err != nil {
		_ = body.Close()
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	return &RowReader{body: body, reader: r, headers: headers}, nil
}

// Next returns the next record or io.EOF. Short rows leave the missing
// columns out of the map.
func (r *RowReader) Next() (map[string]string, error) {
	if r.headers == nil {
		return nil, io.EOF
	}
	rec, err := r.reader.Read()
	if err != nil {
		return nil, err
	}
	row := make(map[string]string, len(r.headers))
	for i, h := range r.headers {
		if i < len(rec) {
			row[h] = rec[i]
		}
	}
	return row, nil
}

func (r *RowReader) Close() error {
	return r.body.Close()
}
