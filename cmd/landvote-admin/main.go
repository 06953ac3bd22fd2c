package main

import (
	"os"

	"github.com/stake-plus/landvote/src/admin"
	"github.com/stake-plus/landvote/src/api/data"
)

func main() {
	if err := admin.NewRootCommand(data.ConnectMySQL).Execute(); err != nil {
		os.Exit(1)
	}
}
