package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	appconfig "fieldops-backend/internal/config"
	"fieldops-backend/internal/repositories"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Exporter periodically dumps the history collection to an S3-compatible
// bucket (R2). The archive is the only copy of concluded operations, so it
// gets an off-box backup; the active schedule is transient and is not backed
// up. Object keys are date-stamped; re-running an export on the same day
// overwrites that day's object, which is fine - the dump is cumulative.
type Exporter struct {
	historyRepo *repositories.HistoryRepository
	cfg         *appconfig.Config
	client      *s3.Client
	interval    time.Duration
	stopChan    chan struct{}
	wg          sync.WaitGroup
}

func NewExporter(historyRepo *repositories.HistoryRepository, cfg *appconfig.Config) (*Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.Backup.AccessKey,
			cfg.Backup.SecretKey,
			"",
		)),
		awsconfig.WithRegion(cfg.Backup.Region),
	)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Backup.Endpoint)
	})

	return &Exporter{
		historyRepo: historyRepo,
		cfg:         cfg,
		client:      client,
		interval:    time.Duration(cfg.Backup.IntervalHours) * time.Hour,
		stopChan:    make(chan struct{}),
	}, nil
}

// Start runs the export loop in the background
func (e *Exporter) Start() {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		log.Printf("[Backup] history export every %s to bucket %s", e.interval, e.cfg.Backup.Bucket)

		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()

		for {
			select {
			case <-e.stopChan:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
				if err := e.ExportOnce(ctx); err != nil {
					log.Printf("[Backup] export failed: %v", err)
				}
				cancel()
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight export to finish
func (e *Exporter) Stop() {
	close(e.stopChan)
	e.wg.Wait()
}

// ExportOnce uploads a JSON dump of the full history collection
func (e *Exporter) ExportOnce(ctx context.Context) error {
	entries, err := e.historyRepo.List(ctx)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	key := fmt.Sprintf("historico/%s.json", time.Now().UTC().Format("2006-01-02"))
	_, err = e.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(e.cfg.Backup.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	log.Printf("[Backup] exported %d history records to %s", len(entries), key)
	return nil
}
