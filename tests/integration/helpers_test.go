package integration

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"payroll-core/pkg/config"
	"payroll-core/pkg/database"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// connectRedis 连接不上就跳过
func connectRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{Addr: envOr("REDIS_ADDR", "localhost:6379")})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		t.Skip("Skipping integration test: redis not available: " + err.Error())
	}
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// connectPostgres 使用 db.* 默认配置，可通过 DB_HOST 等环境变量覆盖
func connectPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	db, err := database.ConnectPostgres(cfg.DB.DSN())
	if err != nil {
		t.Skip("Skipping integration test: postgres not available: " + err.Error())
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
