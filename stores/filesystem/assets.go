package filesystem

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PhuocnhQn/photo-frame-editor/core"

	"github.com/sirupsen/logrus"
)

type assetStore struct {
	basePath string
}

// NewAssetStore creates a filesystem store rooted at basePath. Frames live in
// basePath/frames and photos in basePath/uploads; both directories are created
// on startup.
func NewAssetStore(basePath string) core.AssetStore {
	for _, kind := range []core.AssetKind{core.KindFrame, core.KindPhoto} {
		if err := os.MkdirAll(filepath.Join(basePath, string(kind)), 0755); err != nil {
			log.Fatalf("failed to create %s directory: %v", kind, err)
		}
	}
	return &assetStore{basePath: basePath}
}

// path resolves kind/name and makes sure the result stays inside the kind's
// directory.
func (s *assetStore) path(kind core.AssetKind, name string) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown asset kind %q", kind)
	}
	dir, err := filepath.Abs(filepath.Join(s.basePath, string(kind)))
	if err != nil {
		return "", err
	}
	p, err := filepath.Abs(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	if name == "" || !strings.HasPrefix(p, dir+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid path: access denied")
	}
	return p, nil
}

func (s *assetStore) Put(ctx context.Context, kind core.AssetKind, name string, data []byte) error {
	filePath, err := s.path(kind, name)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"kind": string(kind), "name": name, "file_path": filePath})

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		log.WithError(err).Error("Failed to write asset")
		return err
	}
	log.Debug("Asset written")
	return nil
}

func (s *assetStore) Get(ctx context.Context, kind core.AssetKind, name string) (*core.Asset, error) {
	filePath, err := s.path(kind, name)
	if err != nil {
		return nil, err
	}
	log := logrus.WithFields(logrus.Fields{"kind": string(kind), "name": name, "file_path": filePath})

	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn("Asset file not found")
			return nil, fmt.Errorf("%s/%s: %w", kind, name, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to read asset")
		return nil, err
	}

	asset := &core.Asset{Kind: kind, Name: name, Data: data}
	if info, err := os.Stat(filePath); err == nil {
		asset.CreatedAt = info.ModTime()
	}
	return asset, nil
}

func (s *assetStore) List(ctx context.Context, kind core.AssetKind) ([]string, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("unknown asset kind %q", kind)
	}
	dir := filepath.Join(s.basePath, string(kind))

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		logrus.WithError(err).WithField("path", dir).Error("Failed to read asset directory")
		return nil, err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (s *assetStore) Delete(ctx context.Context, kind core.AssetKind, name string) error {
	filePath, err := s.path(kind, name)
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"kind": string(kind), "name": name, "file_path": filePath})

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			log.Warn("Asset file not found for deletion")
			return fmt.Errorf("%s/%s: %w", kind, name, core.ErrNotFound)
		}
		log.WithError(err).Error("Failed to delete asset")
		return err
	}
	log.Info("Asset deleted")
	return nil
}
