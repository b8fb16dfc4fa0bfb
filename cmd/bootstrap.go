package main

import (
	"context"
	"fmt"
	"log"

	"tomobs/internal/clients"
	"tomobs/internal/config"
	"tomobs/internal/facility"
	"tomobs/internal/storage"
	"tomobs/pkg/database"

	"gorm.io/gorm"
)

// buildRegistry registers every facility named in the configuration.
func buildRegistry(cfg *config.Config) (*facility.Registry, error) {
	registry := facility.NewRegistry()

	for _, name := range cfg.Facilities.Enabled {
		switch name {
		case facility.LCOName:
			client := clients.NewLCOClient(clients.LCOConfig{
				PortalURL: cfg.Facilities.LCO.PortalURL,
				APIKey:    cfg.Facilities.LCO.APIKey,
			})
			registry.Register(facility.NewLCOFacility(client, cfg.Facilities.LCO.PortalURL))
		default:
			return nil, fmt.Errorf("unknown facility %q", name)
		}
		log.Printf("Facility %s enabled", name)
	}

	if cfg.Facilities.LCO.APIKey == "" && registry.Has(facility.LCOName) {
		log.Println("LCO_API_KEY is not set, LCO submissions will be rejected")
	}
	return registry, nil
}

// openStore returns the data product store selected by STORAGE_BACKEND.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	if cfg.Storage.Backend == "minio" {
		store, err := storage.NewMinioStore(ctx, storage.MinioConfig{
			Endpoint:  cfg.Storage.MinioEndpoint,
			AccessKey: cfg.Storage.MinioAccessKey,
			SecretKey: cfg.Storage.MinioSecretKey,
			Bucket:    cfg.Storage.MinioBucket,
			UseSSL:    cfg.Storage.MinioUseSSL,
		})
		if err != nil {
			return nil, err
		}
		log.Printf("Storing data products in bucket %s at %s", cfg.Storage.MinioBucket, cfg.Storage.MinioEndpoint)
		return store, nil
	}

	store, err := storage.NewLocalStore(cfg.App.MediaRoot)
	if err != nil {
		return nil, err
	}
	log.Printf("Storing data products under %s", cfg.App.MediaRoot)
	return store, nil
}

// openDatabase connects to postgres and brings the schema up to date.
func openDatabase(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return nil, nil, err
	}
	closeDB := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	if err := database.Migrate(db); err != nil {
		closeDB()
		return nil, nil, err
	}
	return db, closeDB, nil
}
