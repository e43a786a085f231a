package stores

import (
	"github.com/PhuocnhQn/photo-frame-editor/config"
	"github.com/PhuocnhQn/photo-frame-editor/core"
	"github.com/PhuocnhQn/photo-frame-editor/stores/aws"
	"github.com/PhuocnhQn/photo-frame-editor/stores/filesystem"
	"github.com/PhuocnhQn/photo-frame-editor/stores/memory"
	"github.com/PhuocnhQn/photo-frame-editor/stores/sqlite"

	"github.com/sirupsen/logrus"
)

// GetStore builds the asset store selected by cfg.StorageType.
func GetStore(cfg *config.Config) core.AssetStore {
	var store core.AssetStore

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store = filesystem.NewAssetStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store = sqlite.NewAssetStore(cfg.DataSourceName)
	case "s3":
		if cfg.S3BucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3BucketName
		store = aws.NewAssetStore(cfg.S3BucketName)
	default:
		store = memory.NewAssetStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}
