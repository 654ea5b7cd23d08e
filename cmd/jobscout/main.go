// Package main provides the entry point for the Job Scout CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "jobscout",
	Short: "Job Scout profile refinement and matching CLI",
	Long:  "Job Scout refines a job seeker's profile through an iterative question-driven pipeline and matches finished profiles against freshly ingested job postings.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
