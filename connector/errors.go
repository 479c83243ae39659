package connector

import "github.com/ceyewan/idforge/xerrors"

// 连接器哨兵错误
var (
	ErrConfig      = xerrors.New("connector: invalid config")
	ErrConnection  = xerrors.New("connector: connection failed")
	ErrClientNil   = xerrors.New("connector: client is nil")
	ErrHealthCheck = xerrors.New("connector: health check failed")
)

func configError(kind, msg string) error {
	return xerrors.Wrapf(ErrConfig, "%s: %s", kind, msg)
}
