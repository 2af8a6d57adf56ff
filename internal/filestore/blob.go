// Package filestore keeps uploaded files as blobs in the relational store.
package filestore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/msomdec/postbook/internal/dbaccess"
	"github.com/msomdec/postbook/internal/domain"
)

// MaxFileSize is the largest file Save accepts.
const MaxFileSize = 10 * 1024 * 1024 // 10MB

// BlobStore implements domain.FileStorage on the FileBlobs table.
type BlobStore struct {
	factory    dbaccess.ConnectionFactory
	connString string
	now        func() time.Time
}

// NewBlobStore creates a new BlobStore.
func NewBlobStore(factory dbaccess.ConnectionFactory, connString string) *BlobStore {
	return &BlobStore{factory: factory, connString: connString, now: time.Now}
}

// Save stores the contents of r and returns a fresh link made of a UUID and
// the lower-cased extension of filename.
func (s *BlobStore) Save(ctx context.Context, r io.Reader, filename string) (string, error) {
	if strings.TrimSpace(filename) == "" {
		return "", fmt.Errorf("%w: file name is required", domain.ErrInvalidInput)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, MaxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if n > MaxFileSize {
		return "", fmt.Errorf("%w: file exceeds 10MB limit", domain.ErrInvalidInput)
	}
	if n == 0 {
		return "", fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}

	link := uuid.NewString() + strings.ToLower(filepath.Ext(filename))
	_, err = s.exec(ctx, "INSERT INTO FileBlobs (Link, FileName, Size, Data, CreatedAt) VALUES (@Link, @FileName, @Size, @Data, @CreatedAt)",
		dbaccess.Parameter{Name: "Link", Value: link},
		dbaccess.Parameter{Name: "FileName", Value: filepath.Base(filename)},
		dbaccess.Parameter{Name: "Size", Value: n},
		dbaccess.Parameter{Name: "Data", Value: buf.Bytes()},
		dbaccess.Parameter{Name: "CreatedAt", Value: s.now().UTC()},
	)
	if err != nil {
		return "", fmt.Errorf("save file blob: %w", err)
	}
	return link, nil
}

// Get returns the stored bytes for link.
func (s *BlobStore) Get(ctx context.Context, link string) ([]byte, error) {
	conn, release, err := dbaccess.Acquire(ctx, s.factory, s.connString)
	if err != nil {
		return nil, err
	}
	defer release()

	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText("SELECT Data FROM FileBlobs WHERE Link = @Link")
	cmd.AddParameter("Link", link)
	v, err := cmd.ExecuteScalar(ctx)
	if err != nil {
		return nil, fmt.Errorf("get file blob: %w", err)
	}
	switch data := v.(type) {
	case nil:
		return nil, domain.ErrNotFound
	case []byte:
		return data, nil
	case string:
		return []byte(data), nil
	}
	return nil, fmt.Errorf("get file blob: unexpected %T", v)
}

func (s *BlobStore) Delete(ctx context.Context, link string) error {
	n, err := s.exec(ctx, "DELETE FROM FileBlobs WHERE Link = @Link",
		dbaccess.Parameter{Name: "Link", Value: link})
	if err != nil {
		return fmt.Errorf("delete file blob: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (s *BlobStore) exec(ctx context.Context, text string, params ...dbaccess.Parameter) (int64, error) {
	conn, release, err := dbaccess.Acquire(ctx, s.factory, s.connString)
	if err != nil {
		return 0, err
	}
	defer release()

	cmd := conn.CreateCommand()
	defer cmd.Close()
	cmd.SetText(text)
	for _, p := range params {
		cmd.AddParameter(p.Name, p.Value)
	}
	return cmd.ExecuteNonQuery(ctx)
}
