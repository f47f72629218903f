package task

import (
	"chode/db"
	"chode/internal/memstore"
)

// Task 结果侧：消费 worker 回执并落库
type Task struct {
	Memory *memstore.Store
}

func New() *Task {
	return &Task{}
}

func (t *Task) Init() error {
	if err := t.InitMemoryStore(); err != nil {
		return err
	}
	return t.InitImageResultsConsumer()
}

func (t *Task) InitMemoryStore() error {
	t.Memory = memstore.New(db.GetDb("chode"))
	return t.Memory.AutoMigrate()
}
