// easyreconcile 主程序
// 功能：管理自动对账任务，按方法顺序调用匹配插件并记录每次运行的对账组
// 子命令：serve（HTTP + gRPC 健康检查 + Kafka 运行指令）、migrate、run、health
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
