package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	// .env is optional; DEVY_* variables override config file values
	_ = godotenv.Load()

	var root = &cobra.Command{Use: "devy", Short: "Devy career advisor service"}
	root.AddCommand(serveCMD(), migrateCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
