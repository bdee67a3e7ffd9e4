// Package blobstore stores uploaded prescription artifacts.
//
// An ObjectStore writes immutable objects under a bucket and resolves them to
// public URLs. InMemory backs development and tests and can serve its
// objects over HTTP; S3Store writes to S3 or an S3-compatible endpoint.
package blobstore

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

var (
	// ErrObjectExists is returned by Put without Upsert when the path is
	// already taken.
	ErrObjectExists   = errors.New("object already exists")
	ErrObjectNotFound = errors.New("object not found")
)

// PutOptions control a single write.
type PutOptions struct {
	ContentType string
	// Upsert allows replacing an existing object. Intake never sets it.
	Upsert bool
}

// ObjectStore is the storage contract used by intake.
type ObjectStore interface {
	Put(ctx context.Context, bucket, path string, body []byte, opts PutOptions) error
	PublicURL(bucket, path string) string
}

// publicURL joins base, bucket and an object path, escaping each segment.
func publicURL(base, bucket, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.TrimRight(base, "/") + "/" + url.PathEscape(bucket) + "/" + strings.Join(segments, "/")
}
