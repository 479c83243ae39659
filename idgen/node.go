package idgen

import (
	"context"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/trace"
	"github.com/ceyewan/idforge/xerrors"
)

// Node 组合分配器与 Snowflake：启动时获取 worker id，运行期间维持租约。
// 租约一旦丢失，worker id 可能已被其他节点接管，Node 随即拒绝继续生成 ID
type Node struct {
	sf     *Snowflake
	alloc  Allocator
	logger clog.Logger
	method string

	cancel context.CancelFunc
	wg     sync.WaitGroup

	fenced    atomic.Bool
	fenceErr  atomic.Value // error
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewNode 分配 worker id 并创建 Node
//
//	node, err := idgen.NewNode(ctx, &idgen.Config{
//	    AllocatorConfig: idgen.AllocatorConfig{Method: idgen.MethodRedis},
//	}, idgen.WithRedisConnector(redisConn), idgen.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer node.Close()
//
//	id, err := node.NextID()
func NewNode(ctx context.Context, cfg *Config, opts ...Option) (*Node, error) {
	if cfg == nil {
		return nil, xerrors.WithCode(xerrors.ErrInvalidInput, "config_nil")
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts...)
	logger := o.logger.WithNamespace("idgen")

	alloc := o.alloc
	if alloc == nil {
		var err error
		if alloc, err = NewAllocator(&c.AllocatorConfig, opts...); err != nil {
			return nil, err
		}
	}

	workerID, err := allocate(ctx, alloc, c.Method, o.tracing)
	if err != nil {
		alloc.Stop()
		return nil, err
	}

	sfOpts := []SnowflakeOption{
		WithEpoch(c.Epoch),
		WithSnowflakeLogger(logger),
		WithSnowflakeMeter(o.meter),
	}
	if o.clock != nil {
		sfOpts = append(sfOpts, WithClock(o.clock))
	}
	sf, err := NewSnowflake(workerID, sfOpts...)
	if err != nil {
		alloc.Stop()
		return nil, err
	}

	kaCtx, cancel := context.WithCancel(context.Background())
	n := &Node{
		sf:     sf,
		alloc:  alloc,
		logger: logger.With(clog.Int64("worker_id", workerID), clog.String("method", c.Method)),
		method: c.Method,
		cancel: cancel,
	}

	errCh := alloc.KeepAlive(kaCtx)
	n.wg.Add(1)
	go n.watch(kaCtx, errCh)

	n.logger.Info("idgen node started")
	return n, nil
}

func allocate(ctx context.Context, alloc Allocator, method string, tracing bool) (int64, error) {
	if !tracing {
		return alloc.Allocate(ctx)
	}
	ctx, span := trace.Tracer().Start(ctx, "idgen.allocate")
	defer span.End()
	span.SetAttributes(attribute.String("idgen.method", method))

	workerID, err := alloc.Allocate(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}
	span.SetAttributes(attribute.Int64("idgen.worker_id", workerID))
	return workerID, nil
}

func (n *Node) watch(ctx context.Context, errCh <-chan error) {
	defer n.wg.Done()
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err == nil {
			return
		}
		n.fence(err)
	}
}

func (n *Node) fence(cause error) {
	n.fenceErr.Store(xerrors.WithCode(xerrors.Join(ErrLeaseLost, cause), "lease_lost"))
	n.fenced.Store(true)
	n.logger.Error("worker id lease lost, node fenced", clog.Error(cause))
}

// NextID 生成下一个 ID；租约丢失后返回 ErrLeaseLost，关闭后返回 ErrNodeClosed
func (n *Node) NextID() (int64, error) {
	if n.closed.Load() {
		return 0, ErrNodeClosed
	}
	if n.fenced.Load() {
		return 0, n.fenceErr.Load().(error)
	}
	return n.sf.NextID()
}

// NextIDs 连续生成 n 个 ID
func (n *Node) NextIDs(count int) ([]int64, error) {
	if count <= 0 {
		return nil, xerrors.Wrapf(xerrors.ErrInvalidInput, "count %d must be positive", count)
	}
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id, err := n.NextID()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// WorkerID 返回分配到的 worker id
func (n *Node) WorkerID() int64 {
	return n.sf.WorkerID()
}

// Epoch 返回 epoch（Unix 毫秒）
func (n *Node) Epoch() int64 {
	return n.sf.Epoch()
}

// Method 返回 worker id 的分配方式
func (n *Node) Method() string {
	return n.method
}

// Snowflake 返回底层生成器
func (n *Node) Snowflake() *Snowflake {
	return n.sf
}

// Healthy 租约有效且未关闭
func (n *Node) Healthy() bool {
	return !n.closed.Load() && !n.fenced.Load()
}

// Close 停止续约并释放 worker id，可重复调用
func (n *Node) Close() error {
	n.closeOnce.Do(func() {
		n.closed.Store(true)
		n.cancel()
		n.alloc.Stop()
		n.wg.Wait()
		n.logger.Info("idgen node closed")
	})
	return nil
}
