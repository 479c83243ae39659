package metrics

// Label 指标标签
//
// 标签值应保持低基数：worker_id、route、status_class 可以，请求 ID、生成的 ID 不行。
type Label struct {
	Key   string
	Value string
}

// L 创建一个 Label
//
//	counter.Inc(ctx, metrics.L("worker_id", "7"))
func L(key, value string) Label {
	return Label{Key: key, Value: value}
}
