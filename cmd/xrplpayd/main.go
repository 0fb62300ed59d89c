package main

import (
	"github.com/LeJamon/goXRPLpay/internal/cli"
)

func main() {
	cli.Execute()
}
