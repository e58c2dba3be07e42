package main

import (
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/naka-gawa/portfolio-core/cmd"
)

func main() {
	cmd.Execute()
}
