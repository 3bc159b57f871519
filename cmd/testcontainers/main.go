package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/permit-review/internal/logger"
	"github.com/localnerve/permit-review/internal/testenv"
	"go.uber.org/zap"
)

func main() {
	var (
		showHelp    bool
		envFilename string
		dbType      string
		withRedis   bool
		withMinIO   bool
	)
	flag.BoolVar(&showHelp, "h", false, "show usage")
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	flag.StringVar(&dbType, "db", "postgres", "database container: postgres or mariadb")
	flag.BoolVar(&withRedis, "redis", true, "start a redis container for change events")
	flag.BoolVar(&withMinIO, "minio", false, "start a minio container for document content")
	flag.Parse()

	usage := `
Run the permit-review development containers and print the environment to reach them.

Usage:

testcontainers [-h] [-f ENV_FILE_PATH] [-db postgres|mariadb] [-redis=false] [-minio]

ENV_FILE_PATH: path to a .env file with image overrides (POSTGRES_IMAGE, MARIADB_IMAGE, REDIS_IMAGE, MINIO_IMAGE)

example
  testcontainers -db mariadb -minio > .env.containers
`
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	}

	zlog, err := logger.New("development", "info")
	if err != nil {
		log.Fatalf("Failed to create logger: %v\n", err)
	}
	defer func() { _ = zlog.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	stack, err := testenv.Start(ctx, testenv.Options{
		DBType: dbType,
		Redis:  withRedis,
		MinIO:  withMinIO,
		Log:    zlog,
	})
	if err != nil {
		zlog.Fatal("failed to start containers", zap.Error(err))
	}

	fmt.Fprintln(os.Stdout, strings.Join(stack.Env(), "\n"))
	zlog.Info("containers running, interrupt to terminate")

	<-ctx.Done()
	zlog.Info("terminating containers")
	if err := stack.Terminate(context.Background()); err != nil {
		zlog.Error("terminate", zap.Error(err))
		os.Exit(1)
	}
}
