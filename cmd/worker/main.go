package main

import (
	"bufio"
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/leginote/fiscalnote/internal/config"
	"github.com/leginote/fiscalnote/internal/database"
	"github.com/leginote/fiscalnote/internal/models"
	"github.com/leginote/fiscalnote/internal/queue"
)

// connectOptionalDB connects to the read-index database if DATABASE_URL is
// set, returning nil otherwise so the worker can still run against the
// filesystem store alone.
func connectOptionalDB(cfg *config.Config) *gorm.DB {
	if cfg.DatabaseURL == "" {
		return nil
	}
	db, err := database.Connect(database.DefaultConfig(cfg.DatabaseURL))
	if err != nil {
		log.Printf("Warning: failed to connect to database: %v", err)
		return nil
	}
	if err := database.Migrate(db); err != nil {
		log.Printf("Warning: failed to run migrations: %v", err)
	}
	return db
}

func main() {
	singleRun := flag.Bool("single-run", false, "Process the bill list once and exit (for Cloud Run Jobs)")
	billsFile := flag.String("bills-file", "", "Path to a file listing bills, one \"chamber,number,year\" per line")
	pollInterval := flag.Duration("poll-interval", time.Hour, "How often to re-process the bill list in continuous mode")
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()

	db := connectOptionalDB(cfg)
	if db != nil {
		defer database.Close(db)
	}

	orchestrator := queue.New(cfg, db)

	bills, err := loadBills(*billsFile)
	if err != nil {
		log.Fatalf("Failed to load bills file: %v", err)
	}
	if len(bills) == 0 {
		log.Println("Warning: no bills listed; worker has nothing to process")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Println("Shutdown signal received, stopping worker...")
		cancel()
	}()

	if *singleRun {
		log.Println("FiscalNote worker running in single-run mode...")
		runBatch(ctx, orchestrator, bills)
		log.Println("Single-run batch complete, exiting")
		return
	}

	log.Println("FiscalNote worker starting in continuous mode...")
	log.Printf("Re-processing the bill list every %v", *pollInterval)

	runBatch(ctx, orchestrator, bills)

	ticker := time.NewTicker(*pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Worker stopped")
			return
		case <-ticker.C:
			runBatch(ctx, orchestrator, bills)
		}
	}
}

// runBatch enqueues every bill and waits for each job to leave the
// queued/running states before returning.
func runBatch(ctx context.Context, o *queue.Orchestrator, bills []models.BillID) {
	log.Printf("Starting batch run (bills=%d)...", len(bills))

	jobs := make([]*models.Job, len(bills))
	for i, id := range bills {
		jobs[i] = o.Enqueue(id)
	}

	done, failed := 0, 0
	for i, job := range jobs {
		for {
			j, ok := o.Job(job.ID)
			if !ok || j.State == models.JobDone || j.State == models.JobFailed {
				break
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
		if j, ok := o.Job(job.ID); ok {
			if j.State == models.JobDone {
				done++
			} else if j.State == models.JobFailed {
				failed++
				log.Printf("  %s failed: %s (%s)", bills[i].Canonical(), j.Error, j.ErrorKind)
			}
		}
	}

	log.Printf("Batch complete: done=%d, failed=%d", done, failed)
}

func loadBills(path string) ([]models.BillID, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var bills []models.BillID
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			continue
		}
		number, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}
		year, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil {
			continue
		}
		bills = append(bills, models.BillID{
			Chamber: strings.TrimSpace(parts[0]),
			Number:  number,
			Year:    year,
		})
	}
	return bills, scanner.Err()
}
