package main

import "github.com/zhouzirui/mock-interviewer/backend/internal/cli"

func main() {
	cli.Execute()
}
