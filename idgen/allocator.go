package idgen

import (
	"context"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/xerrors"
)

// Allocator worker id 分配器。
// 集群内多个 Node 通过同一个分配器后端抢占互不相同的 worker id
type Allocator interface {
	// Allocate 分配 worker id
	Allocate(ctx context.Context) (int64, error)

	// KeepAlive 在后台维持租约，续约失败时向返回的通道发送一个错误后退出
	KeepAlive(ctx context.Context) <-chan error

	// Stop 停止续约并释放 worker id，可重复调用
	Stop()
}

// NewAllocator 根据 cfg.Method 创建分配器
//
//	alloc, _ := idgen.NewAllocator(&idgen.AllocatorConfig{
//	    Method: idgen.MethodRedis,
//	    MaxID:  512,
//	}, idgen.WithRedisConnector(redisConn))
//
//	workerID, _ := alloc.Allocate(ctx)
//	defer alloc.Stop()
func NewAllocator(cfg *AllocatorConfig, opts ...Option) (Allocator, error) {
	if cfg == nil {
		return nil, xerrors.WithCode(xerrors.ErrInvalidInput, "config_nil")
	}
	c := *cfg
	c.setDefaults()
	if err := c.validate(); err != nil {
		return nil, err
	}

	o := applyOptions(opts...)
	logger := o.logger.WithNamespace("allocator").With(clog.String("method", c.Method))

	switch c.Method {
	case MethodStatic:
		return &staticAllocator{workerID: c.WorkerID}, nil
	case MethodIP:
		return &ipAllocator{addrs: net.InterfaceAddrs, logger: logger}, nil
	case MethodRedis:
		if o.redis == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "redis_connector_required")
		}
		return newRedisAllocator(&c, o.redis, logger), nil
	case MethodEtcd:
		if o.etcd == nil {
			return nil, xerrors.WithCode(ErrConnectorNil, "etcd_connector_required")
		}
		return newEtcdAllocator(&c, o.etcd, logger), nil
	default:
		return nil, xerrors.WithCode(xerrors.ErrInvalidInput, "unsupported_method")
	}
}

// staticAllocator 直接返回配置中的 worker id，没有租约
type staticAllocator struct {
	workerID int64
}

func (a *staticAllocator) Allocate(context.Context) (int64, error) {
	return a.workerID, nil
}

func (a *staticAllocator) KeepAlive(context.Context) <-chan error {
	return make(chan error)
}

func (a *staticAllocator) Stop() {}

// ipAllocator 取第一个非回环 IPv4 地址的最后一段作为 worker id，范围 [0, 255]。
// 同一网段内的主机不会冲突
type ipAllocator struct {
	addrs  func() ([]net.Addr, error)
	logger clog.Logger
}

func (a *ipAllocator) Allocate(ctx context.Context) (int64, error) {
	addrs, err := a.addrs()
	if err != nil {
		return 0, xerrors.Wrap(err, "list interface addresses")
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			id := int64(ip4[3])
			a.logger.InfoContext(ctx, "worker id derived from ip",
				clog.Int64("worker_id", id),
				clog.String("ip", ip4.String()),
			)
			return id, nil
		}
	}
	return 0, xerrors.WithCode(xerrors.Wrap(ErrWorkerIDExhausted, "no non-loopback ipv4 address"), "no_ipv4_address")
}

func (a *ipAllocator) KeepAlive(context.Context) <-chan error {
	return make(chan error)
}

func (a *ipAllocator) Stop() {}

// ownerValue 写入租约键的值，便于排查是哪个进程占用了 worker id
func ownerValue() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown"
	}
	return fmt.Sprintf("%s:%d", host, os.Getpid())
}

// stopper 保证 Stop 只执行一次
type stopper struct {
	once   sync.Once
	stopCh chan struct{}
}

func newStopper() *stopper {
	return &stopper{stopCh: make(chan struct{})}
}

func (s *stopper) stop(fn func()) {
	s.once.Do(func() {
		close(s.stopCh)
		fn()
	})
}

// sendErr 非阻塞地投递续约错误，通道容量为 1
func sendErr(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}
