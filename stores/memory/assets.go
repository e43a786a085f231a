package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/PhuocnhQn/photo-frame-editor/core"

	"github.com/sirupsen/logrus"
)

type assetStore struct {
	mu     sync.RWMutex
	assets map[core.AssetKind]map[string]core.Asset
}

// NewAssetStore creates a new in-memory store.
func NewAssetStore() core.AssetStore {
	return &assetStore{
		assets: make(map[core.AssetKind]map[string]core.Asset),
	}
}

func (s *assetStore) Put(ctx context.Context, kind core.AssetKind, name string, data []byte) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown asset kind %q", kind)
	}
	if name == "" {
		return fmt.Errorf("asset name is required")
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	bucket, ok := s.assets[kind]
	if !ok {
		bucket = make(map[string]core.Asset)
		s.assets[kind] = bucket
	}
	bucket[name] = core.Asset{Kind: kind, Name: name, Data: buf, CreatedAt: time.Now()}
	s.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"kind":        string(kind),
		"name":        name,
		"data_length": len(data),
	}).Debug("Asset stored")
	return nil
}

func (s *assetStore) Get(ctx context.Context, kind core.AssetKind, name string) (*core.Asset, error) {
	s.mu.RLock()
	asset, ok := s.assets[kind][name]
	s.mu.RUnlock()

	if !ok {
		logrus.WithFields(logrus.Fields{"kind": string(kind), "name": name}).Warn("Asset not found")
		return nil, fmt.Errorf("%s/%s: %w", kind, name, core.ErrNotFound)
	}
	return &asset, nil
}

func (s *assetStore) List(ctx context.Context, kind core.AssetKind) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	names := make([]string, 0, len(s.assets[kind]))
	for name := range s.assets[kind] {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *assetStore) Delete(ctx context.Context, kind core.AssetKind, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.assets[kind][name]; !ok {
		return fmt.Errorf("%s/%s: %w", kind, name, core.ErrNotFound)
	}
	delete(s.assets[kind], name)
	return nil
}
