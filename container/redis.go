package container

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/yusufsyaifudin/katalog/pkg/validator"
)

// NewRedisClient connects to redis in single, sentinel or cluster mode and pings it once.
func NewRedisClient(ctx context.Context, conf ConfigRedis) (redis.UniversalClient, error) {
	if err := validator.Validate(conf); err != nil {
		return nil, fmt.Errorf("redis config: %w", err)
	}

	var redisClient redis.UniversalClient
	switch conf.Mode {
	case "single":
		redisClient = redis.NewClient(&redis.Options{
			Addr:     conf.Address[0],
			Username: conf.Username,
			Password: conf.Password,
			DB:       conf.DB,
		})

	case "sentinel":
		redisClient = redis.NewFailoverClient(&redis.FailoverOptions{
			SentinelAddrs: conf.Address,
			Username:      conf.Username,
			Password:      conf.Password,
			DB:            conf.DB,
			MasterName:    conf.MasterName,
		})

	case "cluster":
		// cluster mode is not support DB selection
		redisClient = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    conf.Address,
			Username: conf.Username,
			Password: conf.Password,
		})

	default:
		return nil, fmt.Errorf("unknown redis mode: %s", conf.Mode)
	}

	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = redisClient.Close()
		return nil, fmt.Errorf("error ping redis: %w", err)
	}

	return redisClient, nil
}
