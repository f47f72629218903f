package music

import (
	"bytes"

	"github.com/go-redis/redis"
	"github.com/sirupsen/logrus"

	"chode/config"
	"chode/internal/tools"
)

// Store 按 guild 维度的点歌簿记：待播队列、播放历史、控制消息ID。
// 原来是进程内的三个全局 map，这里落到 redis，播放器重启不丢队列。
// 真正的拉流/播放是宿主的事，这里只管记账
type Store struct {
	rds *redis.Client
}

func NewStore() *Store {
	redisOpt := tools.RedisOption{
		Address:  config.Conf.Common.CommonRedis.RedisAddress,
		Password: config.Conf.Common.CommonRedis.RedisPassword,
		Db:       config.Conf.Common.CommonRedis.Db,
	}
	client := tools.GetRedisInstance(redisOpt)
	if pong, err := client.Ping().Result(); err != nil {
		logrus.Infof("music redis ping: %s, err: %v", pong, err)
	}
	return &Store{rds: client}
}

func NewStoreWithClient(client *redis.Client) *Store {
	return &Store{rds: client}
}

// =============== 键命名规范 ===============

// chode_music_queue_<guild> 待播队列
func queueKey(guildID string) string {
	var b bytes.Buffer
	b.WriteString(config.RedisMusicQueuePrefix)
	b.WriteString(guildID)
	return b.String()
}

// chode_music_history_<guild> 播放历史（栈）
func historyKey(guildID string) string {
	var b bytes.Buffer
	b.WriteString(config.RedisMusicHistoryPrefix)
	b.WriteString(guildID)
	return b.String()
}

// chode_music_control_<guild> 当前控制消息ID
func controlKey(guildID string) string {
	var b bytes.Buffer
	b.WriteString(config.RedisMusicControlPrefix)
	b.WriteString(guildID)
	return b.String()
}

// =============== 队列 ===============

// Enqueue 入队一条点播请求
func (s *Store) Enqueue(guildID, query string) error {
	return s.rds.RPush(queueKey(guildID), query).Err()
}

// NextSong 弹出下一首；current 非空先压入历史。
// 队列为空返回 ""（该断开了）
func (s *Store) NextSong(guildID, current string) (string, error) {
	if current != "" {
		if err := s.rds.RPush(historyKey(guildID), current).Err(); err != nil {
			return "", err
		}
	}
	next, err := s.rds.LPop(queueKey(guildID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return next, err
}

// PrevSong 从历史栈顶取回上一首，没有返回 ""
func (s *Store) PrevSong(guildID string) (string, error) {
	prev, err := s.rds.RPop(historyKey(guildID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return prev, err
}

// QueueLength 队列剩余长度
func (s *Store) QueueLength(guildID string) (int64, error) {
	return s.rds.LLen(queueKey(guildID)).Result()
}

// Clear 停止播放时清空队列和历史
func (s *Store) Clear(guildID string) error {
	return s.rds.Del(queueKey(guildID), historyKey(guildID), controlKey(guildID)).Err()
}

// =============== 控制消息 ===============

// SetControlMessage 记录当前反应控制消息，宿主收到 reaction 时比对
func (s *Store) SetControlMessage(guildID, messageID string) error {
	return s.rds.Set(controlKey(guildID), messageID, 0).Err()
}

func (s *Store) ControlMessage(guildID string) (string, error) {
	id, err := s.rds.Get(controlKey(guildID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}
