// Command seed fills the WorkIt database with demo data.
package main

import (
	"context"
	"flag"
	"log"

	"workit/internal/config"
	"workit/internal/database"
	"workit/internal/seed"
)

func main() {
	defaults := seed.DefaultOptions()
	numUsers := flag.Int("users", defaults.NumUsers, "Number of users to create")
	projects := flag.Int("projects", defaults.ProjectsPerUser, "Projects per user")
	numPosts := flag.Int("posts", defaults.NumPosts, "Number of forum posts to create")
	messages := flag.Int("messages", defaults.MessagesPerPair, "Messages per conversation")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	dryRun := flag.Bool("dry-run", false, "Generate data without writing it")
	fast := flag.Bool("fast", false, "Store plain passwords (development only)")
	randSeed := flag.Int64("seed", 0, "Random seed for repeatable data")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d users, %d projects each, %d posts, clean=%v\n", *numUsers, *projects, *numPosts, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *fast && cfg.IsProduction() {
		log.Fatal("❌ -fast is not allowed in production")
	}

	db, err := database.Connect(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close(db)

	opts := defaults
	opts.NumUsers = *numUsers
	opts.ProjectsPerUser = *projects
	opts.NumPosts = *numPosts
	opts.MessagesPerPair = *messages
	opts.ShouldClean = *shouldClean
	opts.DryRun = *dryRun
	opts.SkipBcrypt = *fast
	opts.RandSeed = *randSeed

	res, err := seed.Seed(db, opts)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d users, %d projects, %d posts, %d messages.", res.Users, res.Projects, res.Posts, res.Messages)
	log.Printf("📧 All seeded users have the password: %s", seed.DefaultPassword)
}
