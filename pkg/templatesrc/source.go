// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package templatesrc opens NiFi template documents from a local path or a
// gs://bucket/object URI.
package templatesrc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const gcsScheme = "gs://"

// Options configures access to remote template stores.
type Options struct {
	// CredentialsFile is a service account key for GCS. Empty uses
	// application default credentials.
	CredentialsFile string
}

// Template is an open template document. Close releases the underlying
// file or GCS reader.
type Template struct {
	// Name is the file name sent with the upload.
	Name string

	io.Reader
	closers []io.Closer
}

// Close releases every resource held by the template.
func (t *Template) Close() error {
	var errs []error
	for _, c := range t.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Open opens location, which is either a filesystem path or a gs:// URI.
func Open(ctx context.Context, location string, opts Options) (*Template, error) {
	if strings.HasPrefix(location, gcsScheme) {
		return openGCS(ctx, location, opts)
	}
	return openFile(location)
}

func openFile(p string) (*Template, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open template %s: %w", p, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat template %s: %w", p, err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("template %s is a directory", p)
	}
	return &Template{Name: filepath.Base(p), Reader: f, closers: []io.Closer{f}}, nil
}

// ParseGCSURI splits gs://bucket/object into its parts.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, gcsScheme)
	if !ok {
		return "", "", fmt.Errorf("%q is not a gs:// URI", uri)
	}
	bucket, object, _ = strings.Cut(rest, "/")
	if bucket == "" || object == "" || strings.HasSuffix(object, "/") {
		return "", "", fmt.Errorf("%q must name a bucket and an object", uri)
	}
	return bucket, object, nil
}

func newStorageClient(ctx context.Context, credentialsFile string) (*storage.Client, error) {
	if credentialsFile == "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
		}
		return client, nil
	}

	info, err := os.Stat(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("service account key not found at path: %s: %w", credentialsFile, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("service account key path %s is a directory", credentialsFile)
	}
	client, err := storage.NewClient(ctx, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}
	return client, nil
}

func openGCS(ctx context.Context, uri string, opts Options) (*Template, error) {
	bucket, object, err := ParseGCSURI(uri)
	if err != nil {
		return nil, err
	}

	client, err := newStorageClient(ctx, opts.CredentialsFile)
	if err != nil {
		return nil, err
	}

	reader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read %s: %w", uri, err)
	}
	return &Template{
		Name:    path.Base(object),
		Reader:  reader,
		closers: []io.Closer{reader, client},
	}, nil
}
