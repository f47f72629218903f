package tools

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var snowflakeNode *snowflake.Node
var snowflakeOnce sync.Once

// GetSnowflakeIdForInt64 生成全局唯一消息ID，入库做幂等主键用
func GetSnowflakeIdForInt64() int64 {
	snowflakeOnce.Do(func() {
		var err error
		snowflakeNode, err = snowflake.NewNode(1)
		if err != nil {
			panic(err)
		}
	})
	return snowflakeNode.Generate().Int64()
}
