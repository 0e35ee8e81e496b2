package app

import "strings"

// Command はqrattendバイナリのサブコマンドを表す。
//
//	qrattend serve        出席APIサーバーを起動する（引数なしも同じ）
//	qrattend migrate      users / sessions / attendance のスキーマを最新にして終了する
//	qrattend healthcheck  起動中サーバーの /health を確認し、終了コードで結果を返す
type Command string

const (
	// CommandServe はQR・OTPによる出席登録APIを起動する。
	CommandServe Command = "serve"
	// CommandMigrate は埋め込みマイグレーションを適用する。サーバーは起動しない。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はSERVER_PORTの /health を確認する。
	// curlのないdistrolessイメージのHEALTHCHECKから呼ばれるため、設定やDB接続を必要としない。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はos.Args[1:]の先頭からサブコマンドを解析する。大文字小文字は区別しない。
// 引数が空または未知のサブコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch cmd := Command(strings.ToLower(strings.TrimSpace(args[0]))); cmd {
	case CommandMigrate, CommandHealthcheck:
		return cmd
	default:
		return CommandServe
	}
}
