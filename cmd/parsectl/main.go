package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/kirillkom/docparse-gateway/internal/infrastructure/llamaparse"
)

// parsectl parses a single document against the remote service and writes
// the markdown to a file or stdout. Useful for smoke-testing an API key
// without standing up the gateway.
func main() {
	_ = godotenv.Load()

	var (
		filePath = flag.String("file", "", "path of the document to parse")
		output   = flag.String("output", "", "write markdown here instead of stdout")
		baseURL  = flag.String("base-url", "", "override the parsing API base URL")
		interval = flag.Duration("interval", llamaparse.DefaultPollInterval, "status poll interval")
		timeout  = flag.Duration("timeout", 0, "overall poll timeout, 0 waits indefinitely")
	)
	flag.Parse()

	if *filePath == "" {
		fmt.Fprintln(os.Stderr, "parsectl: -file is required")
		flag.Usage()
		os.Exit(2)
	}

	client, err := llamaparse.New(llamaparse.Config{
		APIKey:  os.Getenv("LLAMAPARSE_API_KEY"),
		BaseURL: *baseURL,
	},
		llamaparse.WithPollInterval(*interval),
		llamaparse.WithPollTimeout(*timeout),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsectl: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(*filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsectl: open document: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	started := time.Now()
	result, err := client.Parse(ctx, filepath.Base(*filePath), f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parsectl: parse: %v\n", err)
		os.Exit(1)
	}

	if *output == "" {
		fmt.Print(result.Markdown)
	} else if err := os.WriteFile(*output, []byte(result.Markdown), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "parsectl: write output: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "parsed %s in %s (%d pages, %.2f credits)\n",
		filepath.Base(*filePath), time.Since(started).Round(time.Millisecond),
		result.Usage.JobPages, result.Usage.CreditsUsed)
}
