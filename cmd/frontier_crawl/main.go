// Command frontier_crawl runs an in-process crawl against a fresh
// frontier instance, a WebFetcher, and N goroutine workers, grounded on
// cmd/indexer_cli's flag-driven demo harness.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/crawlfrontier/frontier/fetcher"
	"github.com/crawlfrontier/frontier/frontier"
	"github.com/crawlfrontier/frontier/idgen"
)

func main() {
	seedURL := flag.String("url", "", "seed URL to crawl (required)")
	storageFolder := flag.String("storage", "./data", "directory for the embedded frontier store")
	concurrency := flag.Int("concurrency", 3, "number of crawl workers")
	maxDepth := flag.Int("max-depth", 3, "maximum crawl depth")
	politenessMs := flag.Int("politeness-ms", 1000, "minimum gap between fetches to the same host, in ms")
	rps := flag.Float64("rps", 2.0, "token-bucket refill rate per host (dispatch spacing is set by -politeness-ms)")
	resumable := flag.Bool("resumable", true, "enable transactional/durable storage")
	duration := flag.Duration("duration", 2*time.Minute, "maximum time to crawl before stopping")

	flag.Parse()

	if *seedURL == "" {
		log.Fatal("seed URL is required. Use -url flag.")
	}

	if err := os.MkdirAll(*storageFolder, 0o755); err != nil {
		log.Fatalf("failed to create storage folder: %v", err)
	}

	store, err := frontier.OpenSQLiteStore(*storageFolder+"/frontier_crawl.db", *resumable)
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	pageFetcher := frontier.NewTokenBucketPageFetcher(time.Duration(*politenessMs)*time.Millisecond, *rps, 1)

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	f, err := frontier.New(ctx, store, pageFetcher, frontier.Config{
		PolitenessDelay: time.Duration(*politenessMs) * time.Millisecond,
		Resumable:       *resumable,
	})
	if err != nil {
		log.Fatalf("failed to build frontier: %v", err)
	}
	defer f.Close()

	ids := idgen.New()
	webFetcher, err := fetcher.NewWebFetcher(fetcher.Config{
		Headless:       true,
		MaxConcurrency: *concurrency,
		PageTimeout:    30 * time.Second,
		MaxDepth:       uint16(*maxDepth),
		UserAgent:      "crawlfrontier-bot/1.0",
	}, ids)
	if err != nil {
		log.Fatalf("failed to start web fetcher: %v", err)
	}
	defer webFetcher.Close()

	seedDocid := ids.Next()
	host, err := seedHost(*seedURL)
	if err != nil {
		log.Fatalf("invalid seed URL: %v", err)
	}
	if _, err := f.Schedule(ctx, frontier.URLRecord{
		Docid: seedDocid, SeedDocid: seedDocid, URL: *seedURL, Host: host,
	}); err != nil {
		log.Fatalf("failed to schedule seed: %v", err)
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signals
		log.Println("received shutdown signal, stopping crawl")
		cancel()
	}()

	var wg sync.WaitGroup
	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		workerID := workerName(i)
		go func() {
			defer wg.Done()
			webFetcher.RunWorker(ctx, f, workerID)
		}()
	}

	<-ctx.Done()
	f.Finish()
	wg.Wait()

	log.Printf("crawl stopped: queue_size=%d in_progress=%d", f.QueueSize(), f.NumInProgress())
}

func workerName(i int) string {
	return fmt.Sprintf("crawl-worker-%d", i)
}

func seedHost(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("no host in url %q", rawURL)
	}
	return host, nil
}
