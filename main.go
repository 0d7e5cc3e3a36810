/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>

*/
package main

import (
	"github.com/devjogerio/web-scraping-facebook/cmd"
	"github.com/joho/godotenv"
)

func main() {
	// .env 不存在时静默忽略,环境变量优先于配置文件默认值
	_ = godotenv.Load()

	cmd.Execute()
}
