package main

import (
	"os"

	"github.com/charmbracelet/log"
)

func main() {
	// 创建CLI应用
	app := createCliApp()

	// 运行应用
	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
