package main

import (
	"fmt"
	"os"

	"github.com/debemdeboas/race-posts/internal/config"
	"gopkg.in/yaml.v3"
)

func main() {
	// Create a config with defaults applied
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)

	yamlData, err := yaml.Marshal(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating YAML: %v\n", err)
		os.Exit(1)
	}

	// Secrets are read from the environment only and never written here
	header := "# Race Posts Configuration Example\n" +
		"# Copy this file to config.yaml and customize as needed\n" +
		"# Secrets: FIREBASE_AUTH_TOKEN, S3_ACCESS_KEY_ID, S3_SECRET_ACCESS_KEY\n\n"
	output := header + string(yamlData)

	outputFile := "config.example.yaml"
	if len(os.Args) > 1 {
		outputFile = os.Args[1]
	}

	if outputFile == "-" {
		fmt.Print(output)
		return
	}

	if err := os.WriteFile(outputFile, []byte(output), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated example config: %s\n", outputFile)
}
