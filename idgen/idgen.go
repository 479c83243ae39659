// Package idgen 生成分布式唯一、按时间有序的 64 位 ID（Snowflake）。
//
// ID 布局（高位到低位）：
//
//	[ 1 bit: 0 ][ 41 bits: 距 epoch 的毫秒数 ][ 10 bits: worker id ][ 12 bits: 序列号 ]
//
// 单进程内直接使用 Snowflake：
//
//	sf, err := idgen.NewSnowflake(7)
//	if err != nil {
//	    return err
//	}
//	id, err := sf.NextID()
//
// 多实例部署时通过 Node 从 Redis / Etcd 租用 worker id：
//
//	node, err := idgen.NewNode(ctx, &idgen.Config{
//	    AllocatorConfig: idgen.AllocatorConfig{Method: "redis"},
//	}, idgen.WithRedisConnector(redisConn), idgen.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//	id, err := node.NextID()
package idgen

// IDGenerator 是 ID 消费方（db、server）依赖的最小接口，*Snowflake 与 *Node 均实现该接口
type IDGenerator interface {
	NextID() (int64, error)
}

var (
	_ IDGenerator = (*Snowflake)(nil)
	_ IDGenerator = (*Node)(nil)
)
