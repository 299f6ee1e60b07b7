package main

import "github.com/zfogg/sidechain/community/internal/cmd"

func main() {
	cmd.Execute()
}
