package main

import (
	"context"
	"fmt"
	"os"

	"realestate/internal/cli"
)

func main() {
	if err := cli.New(cli.Options{}).Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "realestate:", err)
		os.Exit(1)
	}
}
