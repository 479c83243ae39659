package db

import (
	"context"
	"reflect"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
	"gorm.io/sharding"

	"github.com/ceyewan/idforge/clog"
	"github.com/ceyewan/idforge/idgen"
	"github.com/ceyewan/idforge/metrics"
	"github.com/ceyewan/idforge/xerrors"
)

// CallbackAssignID 注册在 gorm:create 之前的回调名
const CallbackAssignID = "idforge:assign_id"

// MetricIDsAssigned db 组件填充的主键数量
const MetricIDsAssigned = "db_ids_assigned_total"

// idAssigner 用 ID 生成器填充主键
type idAssigner struct {
	gen      idgen.IDGenerator
	assigned metrics.Counter
	logger   clog.Logger
}

func newIDAssigner(gen idgen.IDGenerator, meter metrics.Meter, logger clog.Logger) (*idAssigner, error) {
	assigned, err := meter.Counter(MetricIDsAssigned, "Number of primary keys filled with snowflake ids.")
	if err != nil {
		return nil, xerrors.Wrap(err, "create assigned counter")
	}
	return &idAssigner{gen: gen, assigned: assigned, logger: logger}, nil
}

func (a *idAssigner) register(client *gorm.DB) error {
	create := client.Callback().Create()
	if create.Get(CallbackAssignID) != nil {
		return xerrors.WithCode(xerrors.Wrap(ErrConnectorInUse, "assign id callback already registered"), "connector_in_use")
	}
	return create.Before("gorm:create").Register(CallbackAssignID, a.assign)
}

// assign 为零值的 int64 / uint64 主键填充 ID，支持单条与批量创建
func (a *idAssigner) assign(tx *gorm.DB) {
	if tx.Error != nil || tx.Statement.Schema == nil {
		return
	}
	field := tx.Statement.Schema.PrioritizedPrimaryField
	if !isSnowflakeField(field) {
		return
	}

	ctx := tx.Statement.Context
	rv := tx.Statement.ReflectValue
	var n int
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			ok, err := a.fill(ctx, field, reflect.Indirect(rv.Index(i)))
			if err != nil {
				_ = tx.AddError(err)
				return
			}
			if ok {
				n++
			}
		}
	case reflect.Struct:
		ok, err := a.fill(ctx, field, rv)
		if err != nil {
			_ = tx.AddError(err)
			return
		}
		if ok {
			n++
		}
	}

	if n > 0 {
		a.assigned.Add(ctx, float64(n), metrics.L("table", tx.Statement.Table))
	}
}

func (a *idAssigner) fill(ctx context.Context, field *schema.Field, rv reflect.Value) (bool, error) {
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return false, nil
	}
	if _, zero := field.ValueOf(ctx, rv); !zero {
		return false, nil
	}
	id, err := a.gen.NextID()
	if err != nil {
		return false, xerrors.Wrap(err, "generate primary key")
	}
	if err := field.Set(ctx, rv, id); err != nil {
		return false, xerrors.Wrapf(err, "set primary key %s", field.Name)
	}
	return true, nil
}

func isSnowflakeField(field *schema.Field) bool {
	if field == nil {
		return false
	}
	t := field.FieldType
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Kind() == reflect.Int64 || t.Kind() == reflect.Uint64
}

// shardingMiddleware 构造分表中间件，分表主键使用同一个 ID 生成器
func (a *idAssigner) shardingMiddleware(rule *ShardingRule) *sharding.Sharding {
	tables := make([]any, len(rule.Tables))
	for i, table := range rule.Tables {
		tables[i] = table
	}
	return sharding.Register(sharding.Config{
		ShardingKey:           rule.ShardingKey,
		NumberOfShards:        rule.NumberOfShards,
		PrimaryKeyGenerator:   sharding.PKCustom,
		PrimaryKeyGeneratorFn: a.shardingPK,
	}, tables...)
}

// shardingPK 供 INSERT 未携带 id 列时使用，回调签名不能返回错误，失败时记录日志并返回 0
func (a *idAssigner) shardingPK(tableIdx int64) int64 {
	id, err := a.gen.NextID()
	if err != nil {
		a.logger.Error("generate sharding primary key failed",
			clog.Error(err),
			clog.Int64("table_index", tableIdx),
		)
		return 0
	}
	a.assigned.Inc(context.Background(), metrics.L("table", "sharding"))
	return id
}
