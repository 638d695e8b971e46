package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/edupoint-api/pkg/config"
)

const keyPrefix = "edupoint"

// NewRedis returns a configured Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

// BalanceKey names the cached balance snapshot of a student.
func BalanceKey(studentID string) string {
	return key("balance", studentID)
}

// LeaderboardKey names the cached class leaderboard. An empty class means all classes.
func LeaderboardKey(className string) string {
	if className == "" {
		className = "_all"
	}
	return key("leaderboard", strings.ToLower(className))
}

// LeaderboardPattern matches every cached leaderboard.
func LeaderboardPattern() string {
	return key("leaderboard", "*")
}

func key(parts ...string) string {
	return keyPrefix + ":" + strings.Join(parts, ":")
}
