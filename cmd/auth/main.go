// Command auth runs the token rotation and action request service.
package main

import (
	"fmt"
	"os"

	"github.com/aussiebroadwan/authflow/internal/auth/app"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Println(app.BuildVersion)
		return
	}

	application, err := app.New(app.LoadConfig())
	if err != nil {
		fmt.Fprintf(os.Stderr, "auth: startup failed: %v\n", err)
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "auth: %v\n", err)
		os.Exit(1)
	}
}
