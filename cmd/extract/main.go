package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/farrukh-siddiqui/expense-tracker/internal/ingest"
)

// Extracts the text layer of a local statement PDF and prints it, page
// breaks included. Useful for checking what the parser will actually see
// before burning a model call on it.
func main() {
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s <statement.pdf>\n", os.Args[0])
		os.Exit(2)
	}

	if err := run(flag.Arg(0)); err != nil {
		log.Fatalf("error: %v", err)
	}
}

func run(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read PDF at %q: %w", path, err)
	}

	if err := ingest.ValidateUpload(data, "application/pdf", int64(len(data)), ingest.MaxUploadBytes); err != nil {
		return err
	}

	extraction, err := ingest.ExtractText(context.Background(), data)
	if err != nil {
		return err
	}

	if extraction.Empty {
		fmt.Fprintln(os.Stderr, "no machine-readable text in this PDF")
		return nil
	}

	fmt.Fprintf(os.Stderr, "%d page(s)\n", extraction.Pages)
	fmt.Println(extraction.Text)
	return nil
}
