package guildconf

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"chode/config"
)

// Conf 单个 guild 的配置，键值自由扩展，目前只用 personality
type Conf map[string]any

func confPath(guildID string) string {
	return filepath.Join(config.Conf.Bot.GuildConfDir, fmt.Sprintf("config_%s.json", guildID))
}

// Load 读 config_<guild>.json；文件不存在返回空配置（不是错误）
func Load(guildID string) Conf {
	raw, err := os.ReadFile(confPath(guildID))
	if err != nil {
		return Conf{}
	}
	var c Conf
	if err := json.Unmarshal(raw, &c); err != nil {
		return Conf{}
	}
	return c
}

func Save(guildID string, c Conf) error {
	raw, err := json.MarshalIndent(c, "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshal guild config")
	}
	return errors.Wrapf(os.WriteFile(confPath(guildID), raw, 0644), "save guild config %s", guildID)
}

// Personality 该 guild 的人设，没配置就用全局默认
func (c Conf) Personality() string {
	if p, ok := c["personality"].(string); ok && p != "" {
		return p
	}
	return config.Conf.Bot.DefaultPersonality
}

// SetPersonality setup 命令落盘
func SetPersonality(guildID, personality string) error {
	c := Load(guildID)
	c["personality"] = personality
	return Save(guildID, c)
}
