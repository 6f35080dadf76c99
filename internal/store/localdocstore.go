package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// LocalDocumentStore implements DocumentStore against a directory tree on
// disk, used for local runs and tests in place of the real cloud drive.
// Folder and file ids are just their path relative to Root.
type LocalDocumentStore struct {
	Root string
}

func NewLocalDocumentStore(root string) *LocalDocumentStore {
	return &LocalDocumentStore{Root: root}
}

func (s *LocalDocumentStore) abs(relId string) string {
	return filepath.Join(s.Root, filepath.FromSlash(relId))
}

func (s *LocalDocumentStore) List(ctx context.Context, folderId string) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.abs(folderId))
	if err != nil {
		return nil, fmt.Errorf("listing %q: %w", folderId, err)
	}
	infos := make([]FileInfo, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		id := filepath.ToSlash(filepath.Join(folderId, e.Name()))
		infos = append(infos, FileInfo{
			Id:          id,
			Name:        e.Name(),
			MimeType:    mimeFromExt(e.Name()),
			LastUpdated: fi.ModTime(),
		})
	}
	return infos, nil
}

func (s *LocalDocumentStore) Download(ctx context.Context, id string) ([]byte, error) {
	b, err := os.ReadFile(s.abs(id))
	if err != nil {
		return nil, fmt.Errorf("downloading %q: %w", id, err)
	}
	return b, nil
}

func (s *LocalDocumentStore) Move(ctx context.Context, id, targetFolderId, newName string) error {
	if newName == "" {
		newName = filepath.Base(id)
	}
	targetDir := s.abs(targetFolderId)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return fmt.Errorf("creating target folder %q: %w", targetFolderId, err)
	}
	dest := filepath.Join(targetDir, newName)
	if err := os.Rename(s.abs(id), dest); err != nil {
		return fmt.Errorf("moving %q to %q: %w", id, dest, err)
	}
	return nil
}

func (s *LocalDocumentStore) GetOrCreateFolder(ctx context.Context, parentId, name string) (string, error) {
	id := filepath.ToSlash(filepath.Join(parentId, name))
	if err := os.MkdirAll(s.abs(id), 0o755); err != nil {
		return "", fmt.Errorf("creating folder %q: %w", id, err)
	}
	return id, nil
}

func mimeFromExt(name string) string {
	switch filepath.Ext(name) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}
