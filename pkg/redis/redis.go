package redis

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

type Config struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func Connect(config Config) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", config.Host, config.Port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     20,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	info, err := client.Info(ctx, "server").Result()
	if err != nil {
		log.Printf("Failed to get Redis info: %v", err)
	} else {
		log.Printf("Redis connected: %s (version %s)", addr, parseInfo(info, "redis_version")["redis_version"])
	}

	return client, nil
}

// statsKeys are the INFO fields reported by GetStats.
var statsKeys = []string{
	"redis_version",
	"connected_clients",
	"used_memory_human",
	"used_memory_peak_human",
	"total_connections_received",
	"total_commands_processed",
	"keyspace_hits",
	"keyspace_misses",
	"uptime_in_seconds",
}

// GetStats returns a subset of the server's INFO output.
func GetStats(client *redis.Client) (map[string]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	info, err := client.Info(ctx).Result()
	if err != nil {
		return nil, err
	}
	return parseInfo(info, statsKeys...), nil
}

// parseInfo extracts the wanted "key:value" lines of an INFO reply.
func parseInfo(info string, keys ...string) map[string]string {
	wanted := make(map[string]bool, len(keys))
	for _, k := range keys {
		wanted[k] = true
	}

	stats := make(map[string]string)
	for _, line := range strings.Split(info, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '#' {
			continue
		}
		key, value, found := strings.Cut(line, ":")
		if found && wanted[key] {
			stats[key] = value
		}
	}
	return stats
}
