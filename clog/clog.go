package clog

import "github.com/ceyewan/idforge/xerrors"

// New 创建一个新的 Logger 实例
//
// config - 日志配置，如果为 nil 会使用开发环境默认配置
// opts   - 函数式选项列表，用于命名空间、Context 字段等配置
func New(config *Config, opts ...Option) (Logger, error) {
	if config == nil {
		config = NewDevDefaultConfig("idforge")
	}

	if err := config.validate(); err != nil {
		return nil, xerrors.Wrap(err, "invalid config")
	}

	options := applyOptions(opts...)
	return newLogger(config, options)
}

// Default 返回 info 级别、console 格式、输出到 stdout 的 Logger
// 创建失败时退化为 Discard
func Default() Logger {
	logger, err := New(&Config{Level: "info", Format: "console", Output: "stdout"})
	if err != nil {
		return Discard()
	}
	return logger
}
