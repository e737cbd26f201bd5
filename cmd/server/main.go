// cmd/server/main.go
package main

import (
	"log"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/cobra"
)

const (
	releaseVersion = "0.1.0"
)

func main() {
	log.SetFlags(0)
	cfg := &Config{}
	cobra.CheckErr(newCmd(cfg).Execute())
}
