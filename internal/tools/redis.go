package tools

import (
	"sync"

	"github.com/go-redis/redis"
)

type RedisOption struct {
	Address  string
	Password string
	Db       int
}

var redisInstanceMap = map[string]*redis.Client{}
var redisLock sync.Mutex

// GetRedisInstance 同地址复用一个客户端
func GetRedisInstance(opt RedisOption) *redis.Client {
	redisLock.Lock()
	defer redisLock.Unlock()
	if client, ok := redisInstanceMap[opt.Address]; ok {
		return client
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opt.Address,
		Password: opt.Password,
		DB:       opt.Db,
	})
	redisInstanceMap[opt.Address] = client
	return client
}
