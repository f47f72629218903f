package config

import (
	"os"
	"sync"

	"github.com/spf13/viper"
)

var once sync.Once
var Conf *Config

const (
	SuccessReplyCode = 0
	FailReplyCode    = 1
)

// redis 键前缀（music 相关注册表）
const (
	RedisMusicQueuePrefix   = "chode_music_queue_"
	RedisMusicHistoryPrefix = "chode_music_history_"
	RedisMusicControlPrefix = "chode_music_control_"
)

type Config struct {
	Common   Common         `mapstructure:"common"`
	Comfy    ComfyConfig    `mapstructure:"comfy"`
	LMStudio LMStudioConfig `mapstructure:"lmstudio"`
	Bot      BotConfig      `mapstructure:"bot"`
}

type Common struct {
	CommonRedis  CommonRedis  `mapstructure:"common-redis"`
	CommonKafka  CommonKafka  `mapstructure:"common-kafka"`
	CommonSQLite CommonSQLite `mapstructure:"common-sqlite"`
}

type CommonRedis struct {
	RedisAddress  string `mapstructure:"redisAddress"`
	RedisPassword string `mapstructure:"redisPassword"`
	Db            int    `mapstructure:"db"`
}

type CommonKafka struct {
	Brokers           string `mapstructure:"brokers"`
	ImageJobsTopic    string `mapstructure:"imageJobsTopic"`
	ImageResultsTopic string `mapstructure:"imageResultsTopic"`
}

type CommonSQLite struct {
	Path string `mapstructure:"path"`
}

// ComfyConfig 图像推理服务端配置。
// promptNodeKey/seedNodeKey 是 workflow 模板的约定节点，不要在代码里写死
type ComfyConfig struct {
	ServerAddress     string `mapstructure:"serverAddress"` // host:port，HTTP 和 WS 共用
	WorkflowPath      string `mapstructure:"workflowPath"`
	PromptNodeKey     string `mapstructure:"promptNodeKey"`
	SeedNodeKey       string `mapstructure:"seedNodeKey"`
	RecvTimeoutSec    int    `mapstructure:"recvTimeoutSec"`    // 单次 ws 接收超时
	DeliverTimeoutSec int    `mapstructure:"deliverTimeoutSec"` // 投递 sink 上限
}

type LMStudioConfig struct {
	BaseURL string `mapstructure:"baseUrl"`
	Model   string `mapstructure:"model"`
}

type BotConfig struct {
	DefaultPersonality  string  `mapstructure:"defaultPersonality"`
	GuildConfDir        string  `mapstructure:"guildConfDir"`
	ReactionProbability float64 `mapstructure:"reactionProbability"`
	RewordMaxTokens     int     `mapstructure:"rewordMaxTokens"`
}

func init() {
	Init()
}

// Init 读取 chode.toml，没有配置文件时全部走默认值
func Init() {
	once.Do(func() {
		env := os.Getenv("CHODE_CONF")
		if env == "" {
			env = "./"
		}
		viper.SetConfigName("chode")
		viper.SetConfigType("toml")
		viper.AddConfigPath(env)

		setDefaults()
		// 配置文件可选，读不到就用默认
		_ = viper.ReadInConfig()

		Conf = new(Config)
		if err := viper.Unmarshal(Conf); err != nil {
			panic(err)
		}
	})
}

func setDefaults() {
	viper.SetDefault("common.common-redis.redisAddress", "127.0.0.1:6379")
	viper.SetDefault("common.common-redis.redisPassword", "")
	viper.SetDefault("common.common-redis.db", 0)

	viper.SetDefault("common.common-kafka.brokers", "localhost:9092")
	viper.SetDefault("common.common-kafka.imageJobsTopic", "img.jobs")
	viper.SetDefault("common.common-kafka.imageResultsTopic", "img.results")

	viper.SetDefault("common.common-sqlite.path", "./db/chode.sqlite3")

	viper.SetDefault("comfy.serverAddress", "127.0.0.1:8188")
	viper.SetDefault("comfy.workflowPath", "flux.json")
	viper.SetDefault("comfy.promptNodeKey", "6")
	viper.SetDefault("comfy.seedNodeKey", "31")
	viper.SetDefault("comfy.recvTimeoutSec", 30)
	viper.SetDefault("comfy.deliverTimeoutSec", 10)

	viper.SetDefault("lmstudio.baseUrl", "http://127.0.0.1:1234")
	viper.SetDefault("lmstudio.model", "default")

	viper.SetDefault("bot.defaultPersonality", "You are Chode, a friendly chatbot.")
	viper.SetDefault("bot.guildConfDir", "./")
	viper.SetDefault("bot.reactionProbability", 0.1)
	viper.SetDefault("bot.rewordMaxTokens", 80)
}
