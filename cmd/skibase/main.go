// Command skibase はスキー場サイトの認証APIサーバーを起動する。
//
// 使い方:
//
//	skibase [serve|migrate|seed|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/skibase/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "skibase: %v\n", err)
		os.Exit(1)
	}
}
