// Command demodash はdemo_dataテーブルを表示する認証付きダッシュボード。
//
// サブコマンド: serve（デフォルト）, tui, worker, migrate, seed, healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/demodash/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "demodash: %v\n", err)
		os.Exit(1)
	}
}
