package main

import (
	"log"
	"os"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/auth-probe-go/pkg/database"
	"dev/bravebird/auth-probe-go/pkg/temporal/activities"
	"dev/bravebird/auth-probe-go/pkg/temporal/workflows"
)

const TaskQueue = "auth-probe"

func main() {
	// Get Temporal host from environment
	temporalHost := os.Getenv("TEMPORAL_HOST")
	if temporalHost == "" {
		temporalHost = "localhost:7233"
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort: temporalHost,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Database for report persistence; the worker still runs without it
	mysqlDSN := getEnvOrDefault("MYSQL_DSN", "authprobe:authprobe@tcp(localhost:3306)/authprobe?parseTime=true")
	db, err := database.New(mysqlDSN)
	if err != nil {
		log.Printf("Warning: Failed to connect to database: %v", err)
		log.Println("Running without report persistence")
		db = nil
	}
	if db != nil {
		defer db.Close()
	}

	// Screenshot directory
	screenshotDir := getEnvOrDefault("SCREENSHOT_DIR", "/tmp/screenshots")

	// Create activities
	acts := activities.NewActivities(db, screenshotDir)

	// Probes hold a real browser each, so keep the concurrency low
	w := worker.New(c, TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     2,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	// Register workflows
	w.RegisterWorkflow(workflows.AuthProbeWorkflow)

	// Register activities
	w.RegisterActivity(acts.InitializeProbeActivity)
	w.RegisterActivity(acts.CloseProbeActivity)
	w.RegisterActivity(acts.ExecuteProbeStepActivity)
	w.RegisterActivity(acts.CollectReportActivity)
	w.RegisterActivity(acts.RecordRunStatusActivity)

	log.Printf("Starting Temporal worker on task queue: %s", TaskQueue)
	log.Printf("Temporal host: %s", temporalHost)
	log.Printf("Screenshot dir: %s", screenshotDir)

	// Start worker
	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
