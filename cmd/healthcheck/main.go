// main.go
//
// Permit application document review and workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of permit-review.
// permit-review is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// permit-review is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with permit-review.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/localnerve/permit-review/internal/blob"
	"github.com/localnerve/permit-review/internal/config"
	"github.com/localnerve/permit-review/internal/database"
	"github.com/localnerve/permit-review/internal/events"
	"github.com/localnerve/permit-review/internal/services"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	ctx := context.Background()

	var broker, blobs services.Pinger
	if cfg.RedisURL != "" {
		publisher, err := events.NewRedisPublisher(cfg.RedisURL, cfg.EventsChannel)
		if err != nil {
			log.Fatalf("Failed to create event publisher: %v", err)
		}
		defer publisher.Close()
		broker = publisher
	}
	if cfg.BlobBackend == "minio" {
		store, err := blob.NewMinIOStore(ctx, blob.MinIOConfig{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
		if err != nil {
			log.Fatalf("Failed to connect to object store: %v", err)
		}
		blobs = store
	}

	result := services.HealthCheck(ctx, cfg, db, broker, blobs, nil)

	output, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal health check result: %v", err)
	}
	fmt.Println(string(output))

	if !result.Healthy() {
		os.Exit(1)
	}
}
