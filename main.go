package main

import "github.com/tzhu0704/s3warmup/internal/cmd"

func main() {
	cmd.Execute()
}
