// Command annotate-once runs detection and annotation for a single content
// record in the foreground and prints the terminal state.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tendant/simple-content-annotator/internal/config"
	"github.com/tendant/simple-content-annotator/internal/storage"
	"github.com/tendant/simple-content-annotator/pkg/pipeline"
	"github.com/tendant/simple-content-annotator/pkg/runner"
)

func main() {
	os.Exit(run())
}

func run() int {
	contentID := flag.String("content", "", "content record id (required)")
	authorID := flag.String("author", "1", "author id the annotation is attributed to")
	assetPath := flag.String("asset", "", "asset path relative to ASSET_BASE_DIR, e.g. /public/image/post/x.png; read from CONTENT_API_URL when empty")
	flag.Parse()

	if *contentID == "" {
		flag.Usage()
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		log.Printf("Invalid configuration: %v", err)
		return 1
	}
	// Runs inline; never enqueue on DBOS from here
	cfg.DBOSDatabaseURL = ""

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *assetPath == "" && cfg.ContentAPIURL != "" {
		path, err := storage.NewHTTPAssetReader(cfg.ContentAPIURL).GetAssetPath(ctx, *contentID, *authorID)
		if err != nil {
			log.Printf("Failed to read asset path: %v", err)
			return 1
		}
		*assetPath = path
	}

	r, err := runner.New(ctx, cfg)
	if err != nil {
		log.Printf("Failed to initialize annotator: %v", err)
		return 1
	}
	defer r.Shutdown(context.Background())

	fmt.Printf("Annotating content %s (asset %q)\n", *contentID, *assetPath)
	result := r.RunSync(ctx, pipeline.AnnotateRequest{
		ContentID: *contentID,
		AuthorID:  *authorID,
		AssetPath: *assetPath,
	})

	fmt.Printf("  State: %s\n", result.State)
	fmt.Printf("  Reason: %s\n", result.Reason)
	if result.Error != "" {
		fmt.Printf("  Error: %s\n", result.Error)
	}
	if summary := result.Outputs["summary"]; summary != "" {
		fmt.Printf("  Summary: %s\n", summary)
	}
	if result.AnnotationID != "" {
		fmt.Printf("✓ Annotation %s created\n", result.AnnotationID)
	}

	if annotations, err := r.Annotations(ctx, *contentID); err == nil {
		fmt.Printf("  Annotations on content %s: %d\n", *contentID, len(annotations))
	}

	if !result.Success {
		return 1
	}
	return 0
}
