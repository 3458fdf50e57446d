package moderation_test

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"cybersafe/internal/moderation"
)

// Example classifies one text with the Azure Content Safety backend.
func Example() {
	provider, err := moderation.NewProvider(moderation.ProviderAzure, moderation.ProviderConfig{
		Endpoint: os.Getenv("AZURE_CONTENT_SAFETY_ENDPOINT"),
		APIKey:   os.Getenv("AZURE_CONTENT_SAFETY_KEY"),
	})
	if err != nil {
		log.Fatalf("Failed to create moderation provider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	analyzer := moderation.NewAnalyzer(provider)
	result := analyzer.Analyze(ctx, "I will kill you.")
	if result.Failed() {
		log.Fatalf("Analysis failed: %v", result.Err)
	}

	fmt.Printf("harmful=%v risk=%s\n", result.IsHarmful, result.RiskLevel)
	for category, level := range result.Categories {
		fmt.Printf("  %s: %s (%.2f)\n", category, level, result.ConfidenceScores[category])
	}
}

func ExampleLevelFromSeverity() {
	for _, severity := range []int{0, 2, 4, 6, 9} {
		fmt.Println(severity, moderation.LevelFromSeverity(severity))
	}
	// Output:
	// 0 Safe
	// 2 Low
	// 4 Medium
	// 6 High
	// 9 Unknown
}
