package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/xerrors"
)

// TimestampIDSequence timestamp_id() 使用的序列名
const TimestampIDSequence = "timestamp_id_seq"

const createTimestampIDSeq = `CREATE SEQUENCE IF NOT EXISTS timestamp_id_seq START WITH 1 INCREMENT BY 1 NO MINVALUE NO MAXVALUE CACHE 1`

// timestamp_id(table_name, id) 与 idgen 相同的布局；id 非空时原样返回，
// 以便 DEFAULT timestamp_id('t') 不覆盖应用层已填充的主键
const createTimestampIDFunc = `CREATE OR REPLACE FUNCTION timestamp_id(table_name text, id bigint DEFAULT NULL)
RETURNS bigint AS $$
DECLARE
  time_part bigint;
  sequence_base bigint;
BEGIN
  IF id IS NULL THEN
    time_part := (EXTRACT(EPOCH FROM clock_timestamp()) * 1000)::bigint - %d;
    sequence_base := nextval('timestamp_id_seq');
    RETURN (time_part << %d) | (%d << %d) | (sequence_base & %d);
  END IF;
  RETURN id;
END;
$$ LANGUAGE plpgsql VOLATILE`

// InstallTimestampID 在 PostgreSQL 中创建 timestamp_id_seq 序列（已存在则跳过）与 timestamp_id() 函数。
// 表可以用 DEFAULT timestamp_id('orders') 在数据库侧生成主键。
// workerID 应与应用节点的 worker id 区分开，避免与应用生成的 ID 冲突
func (d *database) InstallTimestampID(ctx context.Context, workerID, epoch int64) error {
	if d.dialect != DriverPostgres {
		return xerrors.Wrapf(ErrUnsupportedDialect, "timestamp_id requires postgres, got %s", d.dialect)
	}
	if workerID < 0 || workerID > idgen.MaxWorkerID {
		return xerrors.WithCode(&idgen.InvalidWorkerIDError{WorkerID: workerID}, "worker_id_out_of_range")
	}
	if epoch <= 0 {
		epoch = idgen.DefaultEpoch
	}

	fn := fmt.Sprintf(createTimestampIDFunc,
		epoch,
		idgen.WorkerIDBits+idgen.SequenceBits,
		workerID, idgen.SequenceBits,
		idgen.MaxSequence,
	)

	err := d.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		if err := tx.Exec(createTimestampIDSeq).Error; err != nil {
			return xerrors.Wrap(err, "create timestamp_id_seq")
		}
		if err := tx.Exec(fn).Error; err != nil {
			return xerrors.Wrap(err, "create timestamp_id function")
		}
		return nil
	})
	if err != nil {
		d.logger.ErrorContext(ctx, "install timestamp_id failed", clog.Error(err))
		return err
	}
	d.logger.InfoContext(ctx, "timestamp_id installed",
		clog.Int64("worker_id", workerID),
		clog.Int64("epoch", epoch),
	)
	return nil
}
