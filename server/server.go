package server

import "context"

// Server 接口定义了一个通用的服务器行为契约。
// 任何实现了 Start 和 Stop 方法的类型都可以交由 app 统一管理生命周期。
type Server interface {
	// Start 启动服务器并阻塞，直到 ctx 被取消或发生错误。
	Start(ctx context.Context) error
	// Stop 优雅地停止服务器，等待正在处理的请求完成。
	Stop(ctx context.Context) error
}
