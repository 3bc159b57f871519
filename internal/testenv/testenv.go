// testenv.go
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

// Package testenv starts throwaway backing services in containers for
// integration tests and local development.
package testenv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/localnerve/permit-review/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
)

// Default images, overridable through the environment
const (
	DefaultPostgresImage = "postgres:17-alpine"
	DefaultMariaDBImage  = "mariadb:11"
	DefaultRedisImage    = "redis:7-alpine"
	DefaultMinIOImage    = "minio/minio:latest"
)

const (
	dbName     = "permits"
	dbUser     = "permits"
	dbPassword = "permits-secret"
	minioUser  = "permits-minio"
	minioPass  = "permits-minio-secret"
)

// Options selects the services to start
type Options struct {
	DBType string // postgres or mariadb, empty for none
	Redis  bool
	MinIO  bool
	Log    *zap.Logger
}

// Stack is a set of running containers and a config pointing at them
type Stack struct {
	Network  *testcontainers.DockerNetwork
	Database testcontainers.Container
	Redis    testcontainers.Container
	MinIO    testcontainers.Container
	Config   *config.Config

	log *zap.Logger
}

// Start launches the requested containers on a private network. On error
// everything already started is terminated.
func Start(ctx context.Context, opts Options) (*Stack, error) {
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}

	stack := &Stack{
		log: log,
		Config: &config.Config{
			Environment:    "test",
			DBType:         "sqlite-pure",
			DBDatabase:     ":memory:",
			DBLogLevel:     "warn",
			EventsChannel:  "permit-review:changes",
			BlobBackend:    "db",
			MaxUploadBytes: config.DefaultMaxUploadBytes,
		},
	}

	nw, err := network.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create network: %w", err)
	}
	stack.Network = nw

	fail := func(err error) (*Stack, error) {
		stack.Terminate(context.Background())
		return nil, err
	}

	if opts.DBType != "" {
		if err := stack.startDatabase(ctx, opts.DBType); err != nil {
			return fail(err)
		}
	}
	if opts.Redis {
		if err := stack.startRedis(ctx); err != nil {
			return fail(err)
		}
	}
	if opts.MinIO {
		if err := stack.startMinIO(ctx); err != nil {
			return fail(err)
		}
	}

	return stack, nil
}

func (s *Stack) startDatabase(ctx context.Context, dbType string) error {
	var (
		image string
		port  nat.Port
		env   map[string]string
		ready wait.Strategy
	)

	switch dbType {
	case "postgres":
		image = imageFromEnv("POSTGRES_IMAGE", DefaultPostgresImage)
		port = "5432/tcp"
		env = map[string]string{
			"POSTGRES_DB":       dbName,
			"POSTGRES_USER":     dbUser,
			"POSTGRES_PASSWORD": dbPassword,
		}
		ready = wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(port),
		).WithDeadline(90 * time.Second)
	case "mysql", "mariadb":
		image = imageFromEnv("MARIADB_IMAGE", DefaultMariaDBImage)
		port = "3306/tcp"
		env = map[string]string{
			"MARIADB_DATABASE":      dbName,
			"MARIADB_USER":          dbUser,
			"MARIADB_PASSWORD":      dbPassword,
			"MARIADB_ROOT_PASSWORD": dbPassword,
		}
		ready = wait.ForListeningPort(port).WithStartupTimeout(90 * time.Second)
	default:
		return fmt.Errorf("unsupported database type %q", dbType)
	}

	c, err := s.run(ctx, "db", image, port, env, ready)
	if err != nil {
		return fmt.Errorf("start %s: %w", dbType, err)
	}
	s.Database = c

	host, mapped, err := endpoint(ctx, c, port)
	if err != nil {
		return err
	}

	s.Config.DBType = dbType
	s.Config.DBHost = host
	s.Config.DBPort = mapped
	s.Config.DBDatabase = dbName
	s.Config.DBUser = dbUser
	s.Config.DBPassword = dbPassword
	s.Config.DBConnectionLimit = 10
	return nil
}

func (s *Stack) startRedis(ctx context.Context) error {
	port := nat.Port("6379/tcp")
	c, err := s.run(ctx, "redis", imageFromEnv("REDIS_IMAGE", DefaultRedisImage), port, nil,
		wait.ForLog("Ready to accept connections").WithStartupTimeout(30*time.Second))
	if err != nil {
		return fmt.Errorf("start redis: %w", err)
	}
	s.Redis = c

	host, mapped, err := endpoint(ctx, c, port)
	if err != nil {
		return err
	}
	s.Config.RedisURL = fmt.Sprintf("redis://%s:%s/0", host, mapped)
	return nil
}

func (s *Stack) startMinIO(ctx context.Context) error {
	port := nat.Port("9000/tcp")
	env := map[string]string{
		"MINIO_ROOT_USER":     minioUser,
		"MINIO_ROOT_PASSWORD": minioPass,
	}
	req := testcontainers.ContainerRequest{
		Image:        imageFromEnv("MINIO_IMAGE", DefaultMinIOImage),
		ExposedPorts: []string{string(port)},
		Env:          env,
		Cmd:          []string{"server", "/data"},
		WaitingFor:   wait.ForHTTP("/minio/health/live").WithPort(port).WithStartupTimeout(60 * time.Second),
		Networks:     []string{s.Network.Name},
		NetworkAliases: map[string][]string{
			s.Network.Name: {"minio"},
		},
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return fmt.Errorf("start minio: %w", err)
	}
	s.MinIO = c

	host, mapped, err := endpoint(ctx, c, port)
	if err != nil {
		return err
	}
	s.Config.BlobBackend = "minio"
	s.Config.MinIOEndpoint = host + ":" + mapped
	s.Config.MinIOAccessKey = minioUser
	s.Config.MinIOSecretKey = minioPass
	s.Config.MinIOBucket = "permit-documents"
	return nil
}

func (s *Stack) run(ctx context.Context, alias, image string, port nat.Port, env map[string]string, ready wait.Strategy) (testcontainers.Container, error) {
	s.log.Info("starting container", zap.String("alias", alias), zap.String("image", image))
	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        image,
			ExposedPorts: []string{string(port)},
			Env:          env,
			WaitingFor:   ready,
			Networks:     []string{s.Network.Name},
			NetworkAliases: map[string][]string{
				s.Network.Name: {alias},
			},
		},
		Started: true,
	})
}

// Terminate stops every container and removes the network
func (s *Stack) Terminate(ctx context.Context) error {
	var errs []error
	for name, c := range map[string]testcontainers.Container{
		"minio":    s.MinIO,
		"redis":    s.Redis,
		"database": s.Database,
	} {
		if c == nil {
			continue
		}
		if err := c.Terminate(ctx); err != nil {
			s.log.Warn("failed to terminate container", zap.String("container", name), zap.Error(err))
			errs = append(errs, err)
		}
	}
	if s.Network != nil {
		if err := s.Network.Remove(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Env renders the stack as KEY=value lines for a .env file
func (s *Stack) Env() []string {
	cfg := s.Config
	lines := []string{
		"DB_TYPE=" + cfg.DBType,
		"DB_HOST=" + cfg.DBHost,
		"DB_PORT=" + cfg.DBPort,
		"DB_DATABASE=" + cfg.DBDatabase,
		"DB_USER=" + cfg.DBUser,
		"DB_PASSWORD=" + cfg.DBPassword,
		"BLOB_BACKEND=" + cfg.BlobBackend,
	}
	if cfg.RedisURL != "" {
		lines = append(lines, "REDIS_URL="+cfg.RedisURL)
	}
	if cfg.MinIOEndpoint != "" {
		lines = append(lines,
			"MINIO_ENDPOINT="+cfg.MinIOEndpoint,
			"MINIO_ACCESS_KEY="+cfg.MinIOAccessKey,
			"MINIO_SECRET_KEY="+cfg.MinIOSecretKey,
			"MINIO_BUCKET="+cfg.MinIOBucket,
		)
	}
	return lines
}

func endpoint(ctx context.Context, c testcontainers.Container, port nat.Port) (string, string, error) {
	host, err := c.Host(ctx)
	if err != nil {
		return "", "", fmt.Errorf("container host: %w", err)
	}
	mapped, err := c.MappedPort(ctx, port)
	if err != nil {
		return "", "", fmt.Errorf("mapped port %s: %w", port, err)
	}
	return host, mapped.Port(), nil
}

func imageFromEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
