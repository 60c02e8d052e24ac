// Command authprobe drives a real browser through the login flow and the
// permission-gated logs page, printing a diagnostic transcript for a human to
// read. It is the manual counterpart of the orchestrated probe worker.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/google/uuid"

	"dev/bravebird/auth-probe-go/pkg/models"
	"dev/bravebird/auth-probe-go/pkg/probe"
)

func main() {
	defaults := models.DefaultProbeConfig()

	baseURL := flag.String("url", getEnvOrDefault("PROBE_BASE_URL", defaults.BaseURL), "base URL of the target application")
	username := flag.String("username", getEnvOrDefault("PROBE_USERNAME", defaults.Username), "login username")
	password := flag.String("password", getEnvOrDefault("PROBE_PASSWORD", defaults.Password), "login password")
	scope := flag.String("scope", defaults.RequiredScope, "scope required for the logs page")
	screenshotDir := flag.String("screenshots", getEnvOrDefault("SCREENSHOT_DIR", defaults.ScreenshotDir), "directory for screenshots")
	headless := flag.Bool("headless", false, "run the browser headless")
	noWait := flag.Bool("no-wait", false, "close the browser immediately instead of waiting for Enter")
	flag.Parse()

	cfg := defaults
	cfg.BaseURL = *baseURL
	cfg.Username = *username
	cfg.Password = *password
	cfg.RequiredScope = *scope
	cfg.ScreenshotDir = *screenshotDir
	cfg.Headless = *headless

	p := probe.New(uuid.New().String(), cfg, os.Stdout)
	if err := p.Start(); err != nil {
		log.Fatalf("Failed to start probe: %v", err)
	}
	defer p.Close()

	if err := p.Run(context.Background()); err != nil {
		// The transcript already explains what happened; the run itself is
		// still useful output, so this is informational.
		log.Printf("Probe stopped early: %v", err)
	}

	if !*noWait {
		fmt.Print("\nPress Enter to close browser...")
		bufio.NewReader(os.Stdin).ReadString('\n')
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
