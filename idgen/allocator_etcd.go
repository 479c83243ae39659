package idgen

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/connector"
	"github.com/ceyewan/idforge/xerrors"
)

type etcdAllocator struct {
	etcd   connector.EtcdConnector
	cfg    *AllocatorConfig
	logger clog.Logger
	value  string
	*stopper

	leaseID  clientv3.LeaseID
	workerID int64
	key      string
}

func newEtcdAllocator(cfg *AllocatorConfig, conn connector.EtcdConnector, logger clog.Logger) *etcdAllocator {
	return &etcdAllocator{
		etcd:     conn,
		cfg:      cfg,
		logger:   logger,
		value:    ownerValue(),
		stopper:  newStopper(),
		workerID: -1,
	}
}

func (a *etcdAllocator) Allocate(ctx context.Context) (int64, error) {
	client := a.etcd.GetClient()
	if client == nil {
		return 0, xerrors.WithCode(connector.ErrClientNil, "etcd_client_nil")
	}

	lease, err := client.Grant(ctx, int64(a.cfg.TTL))
	if err != nil {
		a.logger.ErrorContext(ctx, "etcd grant lease failed", clog.Error(err))
		return 0, xerrors.Wrap(err, "etcd grant lease")
	}

	offset := rand.IntN(a.cfg.MaxID)
	for i := 0; i < a.cfg.MaxID; i++ {
		id := int64((offset + i) % a.cfg.MaxID)
		key := a.cfg.KeyPrefix + ":" + strconv.FormatInt(id, 10)

		// ModRevision == 0 表示键不存在
		resp, err := client.Txn(ctx).
			If(clientv3.Compare(clientv3.ModRevision(key), "=", 0)).
			Then(clientv3.OpPut(key, a.value, clientv3.WithLease(lease.ID))).
			Commit()
		if err != nil {
			a.revoke(lease.ID)
			a.logger.ErrorContext(ctx, "etcd txn failed", clog.Error(err), clog.String("key", key))
			return 0, xerrors.Wrap(err, "etcd acquire worker id")
		}
		if !resp.Succeeded {
			continue
		}

		a.leaseID = lease.ID
		a.workerID = id
		a.key = key
		a.logger.InfoContext(ctx, "worker id allocated",
			clog.Int64("worker_id", id),
			clog.String("key", key),
			clog.Int64("lease_id", int64(lease.ID)),
		)
		return id, nil
	}

	a.revoke(lease.ID)
	return 0, xerrors.WithCode(ErrWorkerIDExhausted, "no_available_worker_id")
}

func (a *etcdAllocator) KeepAlive(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	client := a.etcd.GetClient()
	if a.leaseID == 0 || client == nil {
		sendErr(errCh, xerrors.WithCode(ErrLeaseLost, "not_allocated"))
		return errCh
	}

	go func() {
		// Stop 时取消续约流
		kaCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go func() {
			select {
			case <-a.stopCh:
				cancel()
			case <-kaCtx.Done():
			}
		}()

		kaCh, err := client.KeepAlive(kaCtx, a.leaseID)
		if err != nil {
			a.logger.Error("etcd keep alive failed", clog.Error(err), clog.Int64("lease_id", int64(a.leaseID)))
			sendErr(errCh, xerrors.Wrap(err, "etcd keep alive"))
			return
		}

		for {
			select {
			case <-kaCtx.Done():
				return
			case ka, ok := <-kaCh:
				if ok && ka != nil {
					continue
				}
				// 通道关闭时，如果是主动停止则不视为租约丢失
				if kaCtx.Err() != nil {
					return
				}
				a.logger.Error("lease expired", clog.Int64("lease_id", int64(a.leaseID)), clog.String("key", a.key))
				sendErr(errCh, xerrors.WithCode(xerrors.Wrapf(ErrLeaseLost, "lease %x", int64(a.leaseID)), "lease_expired"))
				return
			}
		}
	}()
	return errCh
}

func (a *etcdAllocator) Stop() {
	a.stop(func() {
		if a.leaseID == 0 {
			return
		}
		// 撤销租约，关联的键随之删除
		a.revoke(a.leaseID)
		a.logger.Info("worker id released",
			clog.Int64("worker_id", a.workerID),
			clog.String("key", a.key),
			clog.Int64("lease_id", int64(a.leaseID)),
		)
	})
}

func (a *etcdAllocator) revoke(id clientv3.LeaseID) {
	client := a.etcd.GetClient()
	if client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := client.Revoke(ctx, id); err != nil {
		a.logger.Warn("etcd revoke lease failed", clog.Error(err), clog.Int64("lease_id", int64(id)))
	}
}
