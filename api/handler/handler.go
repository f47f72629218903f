package handler

import (
	"chode/db"
	"chode/internal/memstore"
	"chode/lmstudio"
	"chode/logic"
	"chode/music"
)

// 包级单例，Init 在 api 模块启动时调用一次
var (
	LogicObj *logic.Logic
	LM       *lmstudio.Client
	Memory   *memstore.Store
	Music    *music.Store
)

func Init() error {
	LogicObj = logic.New()
	if err := LogicObj.Init(); err != nil {
		return err
	}
	LM = lmstudio.NewClient()
	Music = music.NewStore()
	Memory = memstore.New(db.GetDb("chode"))
	return Memory.AutoMigrate()
}
