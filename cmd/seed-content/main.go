// Package main seeds the PostgreSQL content store from YAML quiz packs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openquiz/quizroom/internal/config"
	"github.com/openquiz/quizroom/internal/content"
	"github.com/openquiz/quizroom/internal/storage/postgres"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	quizDir := flag.String("quizzes", "content/quizzes", "path to quiz pack YAML directory")
	skipExisting := flag.Bool("skip-existing", false, "skip quizzes whose code is already present")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("connecting to database: %v", err)
	}
	defer pool.Close()

	repo := postgres.NewQuizRepository(pool.DB())
	defaults := content.Defaults{
		TimeLimit: cfg.Content.DefaultTimeLimit,
		Points:    cfg.Content.DefaultPoints,
	}

	entries, err := os.ReadDir(*quizDir)
	if err != nil {
		log.Fatalf("reading quiz pack directory %s: %v", *quizDir, err)
	}

	seeded, skipped := 0, 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		quiz, questions, err := content.LoadQuizFromFile(filepath.Join(*quizDir, name), defaults)
		if err != nil {
			log.Fatalf("loading quiz pack %s: %v", name, err)
		}

		if err := repo.CreateQuiz(ctx, quiz, questions); err != nil {
			if *skipExisting && errors.Is(err, content.ErrQuizExists) {
				fmt.Printf("skipped %s (quiz %s already exists)\n", name, quiz.Code)
				skipped++
				continue
			}
			log.Fatalf("seeding quiz pack %s: %v", name, err)
		}
		fmt.Printf("seeded %s (quiz %s, %d questions)\n", name, quiz.Code, len(questions))
		seeded++
	}

	fmt.Printf("done: %d seeded, %d skipped [%s]\n", seeded, skipped, time.Since(start).Round(time.Millisecond))
}
