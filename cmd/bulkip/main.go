package main

import (
	"github.com/charmbracelet/log"

	"github.com/langerlad/bulk-ip-app/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal("application terminated", "error", err)
	}
}
