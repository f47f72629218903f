package logic

// Logic 入站请求与队列之间的胶水层：api 把活儿交给它，
// 它负责投到 kafka，让 worker 慢慢干
type Logic struct {
}

func New() *Logic {
	return &Logic{}
}

func (l *Logic) Init() error {
	return l.InitImageJobProducer()
}
