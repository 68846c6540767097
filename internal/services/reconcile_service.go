package services

import (
	"context"
	"log"
	"sync"
	"time"

	"fieldops-backend/internal/metrics"
	"fieldops-backend/internal/recordstore"
	"fieldops-backend/internal/repositories"
)

// Reconciler repairs partial completions: entries that exist in both the
// active and history collections (archive succeeded, delete failed). It
// finishes the missing delete, never the other way around - history records
// are append-only and are never removed.
type Reconciler struct {
	store    recordstore.Store
	interval time.Duration
	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewReconciler(store recordstore.Store, interval time.Duration) *Reconciler {
	return &Reconciler{
		store:    store,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start runs the reconciler loop in the background
func (r *Reconciler) Start() {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		log.Printf("[Reconciler] started, interval %s", r.interval)

		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()

		for {
			select {
			case <-r.stopChan:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
				if _, err := r.RunOnce(ctx); err != nil {
					log.Printf("[Reconciler] scan failed: %v", err)
				}
				cancel()
			}
		}
	}()
}

// Stop halts the loop and waits for an in-flight scan to finish
func (r *Reconciler) Stop() {
	close(r.stopChan)
	r.wg.Wait()
}

// RunOnce scans both collections and deletes every active entry that already
// has an archive record. Returns the number of repairs applied.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	activeKeys, err := r.store.Keys(ctx, repositories.CollectionActive)
	if err != nil {
		return 0, err
	}
	historyKeys, err := r.store.Keys(ctx, repositories.CollectionHistory)
	if err != nil {
		return 0, err
	}

	archived := make(map[string]bool, len(historyKeys))
	for _, k := range historyKeys {
		archived[k] = true
	}

	repaired := 0
	remaining := 0
	for _, key := range activeKeys {
		if !archived[key] {
			continue
		}
		if err := r.store.Remove(ctx, repositories.CollectionActive, key); err != nil {
			log.Printf("[Reconciler] delete of %s failed, will retry next scan: %v", key, err)
			remaining++
			continue
		}
		log.Printf("[Reconciler] finished partial completion for %s", key)
		metrics.ReconcilerRepairsTotal.Inc()
		repaired++
	}

	metrics.PartialCompletionsOpen.Set(float64(remaining))
	return repaired, nil
}
