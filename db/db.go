package db

import (
	"log"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	_ "github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"chode/config"
)

var dbMap = map[string]*gorm.DB{}
var syncLock sync.Mutex

func init() {
	initDB("chode")
}

func initDB(dbName string) {
	var e error
	syncLock.Lock()
	logConfig := logger.Config{
		LogLevel: logger.Warn,
		Colorful: true,
	}
	dbMap[dbName], e = gorm.Open(sqlite.Open(config.Conf.Common.CommonSQLite.Path), &gorm.Config{
		Logger: logger.New(log.Default(), logConfig),
	})
	if e != nil {
		syncLock.Unlock()
		logrus.Errorf("connect db fail:%s", e.Error())
		return
	}
	db, _ := dbMap[dbName].DB()
	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(20)
	db.SetConnMaxLifetime(time.Second * 8)
	syncLock.Unlock()
}

func GetDb(dbName string) (db *gorm.DB) {
	if db, ok := dbMap[dbName]; ok {
		return db
	}
	return nil
}
