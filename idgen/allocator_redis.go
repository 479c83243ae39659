package idgen

import (
	"context"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/connector"
	"github.com/ceyewan/idforge/xerrors"
)

// 从 offset 开始环形遍历 [0, max_id)，用 SET NX EX 原子抢占第一个空闲的 worker id
var acquireScript = redis.NewScript(`
local prefix = KEYS[1]
local value = ARGV[1]
local ttl = tonumber(ARGV[2])
local max_id = tonumber(ARGV[3])
local offset = tonumber(ARGV[4])

for i = 0, max_id - 1 do
	local id = (offset + i) % max_id
	if redis.call("SET", prefix .. ":" .. id, value, "NX", "EX", ttl) then
		return id
	end
end
return -1
`)

// 仅当键仍属于自己时续期，返回 0 表示租约已被他人接管或过期
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("EXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// 仅当键仍属于自己时删除
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisAllocator struct {
	redis  connector.RedisConnector
	cfg    *AllocatorConfig
	logger clog.Logger
	value  string
	*stopper

	workerID int64
	key      string
}

func newRedisAllocator(cfg *AllocatorConfig, conn connector.RedisConnector, logger clog.Logger) *redisAllocator {
	return &redisAllocator{
		redis:    conn,
		cfg:      cfg,
		logger:   logger,
		value:    ownerValue(),
		stopper:  newStopper(),
		workerID: -1,
	}
}

func (a *redisAllocator) Allocate(ctx context.Context) (int64, error) {
	client := a.redis.GetClient()
	if client == nil {
		return 0, xerrors.WithCode(connector.ErrClientNil, "redis_client_nil")
	}

	// 随机起点，减少并发抢占时的冲突
	offset := rand.IntN(a.cfg.MaxID)
	id, err := acquireScript.Run(ctx, client,
		[]string{a.cfg.KeyPrefix}, a.value, a.cfg.TTL, a.cfg.MaxID, offset).Int64()
	if err != nil {
		a.logger.ErrorContext(ctx, "redis acquire worker id failed",
			clog.Error(err),
			clog.String("key_prefix", a.cfg.KeyPrefix),
		)
		return 0, xerrors.Wrap(err, "redis acquire worker id")
	}
	if id < 0 {
		return 0, xerrors.WithCode(ErrWorkerIDExhausted, "no_available_worker_id")
	}

	a.workerID = id
	a.key = a.cfg.KeyPrefix + ":" + strconv.FormatInt(id, 10)
	a.logger.InfoContext(ctx, "worker id allocated",
		clog.Int64("worker_id", id),
		clog.String("key", a.key),
	)
	return id, nil
}

func (a *redisAllocator) KeepAlive(ctx context.Context) <-chan error {
	errCh := make(chan error, 1)
	if a.key == "" {
		sendErr(errCh, xerrors.WithCode(ErrLeaseLost, "not_allocated"))
		return errCh
	}

	go func() {
		ttl := time.Duration(a.cfg.TTL) * time.Second
		ticker := time.NewTicker(ttl / 3)
		defer ticker.Stop()

		for {
			select {
			case <-a.stopCh:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := a.renew(ttl); err != nil {
					a.logger.Error("keep alive failed", clog.Error(err), clog.String("key", a.key))
					sendErr(errCh, err)
					return
				}
			}
		}
	}()
	return errCh
}

func (a *redisAllocator) renew(ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), ttl/3)
	defer cancel()

	client := a.redis.GetClient()
	if client == nil {
		return xerrors.WithCode(connector.ErrClientNil, "redis_client_nil")
	}
	n, err := renewScript.Run(ctx, client, []string{a.key}, a.value, a.cfg.TTL).Int64()
	if err != nil {
		return xerrors.Wrap(err, "redis renew lease")
	}
	if n == 0 {
		return xerrors.WithCode(xerrors.Wrapf(ErrLeaseLost, "key %s", a.key), "lease_expired")
	}
	return nil
}

func (a *redisAllocator) Stop() {
	a.stop(func() {
		if a.key == "" {
			return
		}
		client := a.redis.GetClient()
		if client == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, client, []string{a.key}, a.value).Err(); err != nil {
			a.logger.Warn("release worker id failed", clog.Error(err), clog.String("key", a.key))
			return
		}
		a.logger.Info("worker id released",
			clog.Int64("worker_id", a.workerID),
			clog.String("key", a.key),
		)
	})
}
