// FilePath: cmd/main.go
package main

import (
	"fmt"
	"log"
	"os"

	tm "github.com/buger/goterm"
	"github.com/itsatony/recorderhub/internal/config"
	"github.com/itsatony/recorderhub/internal/server"
	nuts "github.com/vaudience/go-nuts"
)

func main() {
	// Clear console and draw logo
	ClearConsole()
	DrawLogo()
	// Initialize version info
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting RecorderHub v%s", nuts.GetVersion())

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create and start server
	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

// ClearConsole clears the console screen
func ClearConsole() {
	tm.Clear()
	tm.MoveCursor(1, 1)
	tm.Flush()
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"    ____                          __          __  __      __  ",
		"   / __ \\___  _________  _________/ /__  _____/ / / /_  __/ /_ ",
		"  / /_/ / _ \\/ ___/ __ \\/ ___/ __  / _ \\/ ___/ /_/ / / / / __ \\",
		" / _, _/  __/ /__/ /_/ / /  / /_/ /  __/ /  / __  / /_/ / /_/ /",
		"/_/ |_|\\___/\\___/\\____/_/   \\__,_/\\___/_/  /_/ /_/\\__,_/_.___/ ",
		"...............................................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
