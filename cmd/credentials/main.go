package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dmitrijs2005/guildkeeper/internal/admin"
)

func main() {
	root := admin.NewRootCommand(admin.OpenRepository)
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
