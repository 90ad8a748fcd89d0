package app

import (
	"time"

	"github.com/wyfcoding/revmgmt/server"
)

// Option 是一个函数类型，用于配置应用程序选项。
type Option func(*options)

// options 是应用程序的内部配置结构体。
type options struct {
	servers         []server.Server // 应用程序管理的服务器列表
	cleanups        []func()        // 应用程序关闭时执行的清理函数，按注册的逆序执行
	hooks           []Hook          // 随应用启动与停止的组件钩子
	lifecycle       *Lifecycle
	shutdownTimeout time.Duration
}

// WithServer 向应用程序添加一个或多个 `server.Server` 实例。
func WithServer(servers ...server.Server) Option {
	return func(o *options) {
		o.servers = append(o.servers, servers...)
	}
}

// WithCleanup 向应用程序添加一个清理函数。
func WithCleanup(cleanup func()) Option {
	return func(o *options) {
		if cleanup != nil {
			o.cleanups = append(o.cleanups, cleanup)
		}
	}
}

// WithHook 注册组件生命周期钩子，在服务器启动前执行 OnStart，在服务器停止后执行 OnStop。
func WithHook(hook Hook) Option {
	return func(o *options) {
		o.hooks = append(o.hooks, hook)
	}
}

// WithShutdownTimeout 设置优雅关闭的整体超时，默认 10s。
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.shutdownTimeout = d
		}
	}
}

// withLifecycle 使用已有的生命周期管理器，WithHook 注册的钩子追加在其后.
func withLifecycle(lc *Lifecycle) Option {
	return func(o *options) {
		o.lifecycle = lc
	}
}
