// Command qrattend はQRコード/OTPによる出席管理APIサーバーを起動する。
//
// サブコマンド:
//
//	serve        APIサーバーを起動する（デフォルト）
//	migrate      データベースマイグレーションを適用する
//	healthcheck  /health を確認する（コンテナのヘルスチェック用）
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/qrattend/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "qrattend: %v\n", err)
		os.Exit(1)
	}
}
