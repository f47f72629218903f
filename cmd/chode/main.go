package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"chode/api"
	"chode/api/handler"
	"chode/task"
)

// api + task 合在一个进程里跑；imagegen worker 单独起（cmd/imagegen_worker）
func main() {
	if err := handler.Init(); err != nil {
		logrus.Fatalf("init handler: %v", err)
	}

	t := task.New()
	if err := t.Init(); err != nil {
		logrus.Fatalf("init task: %v", err)
	}

	bind := os.Getenv("CHODE_API_BIND")
	if bind == "" {
		bind = ":7070"
	}

	r := api.InitRouter()
	logrus.Infof("chode api listening on %s", bind)
	if err := r.Run(bind); err != nil {
		logrus.Fatalf("api run: %v", err)
	}
}
