// Command main loads the Foodgram catalog and optional demo data.
package main

import (
	"context"
	"flag"
	"log"

	"foodgram/internal/config"
	"foodgram/internal/database"
	"foodgram/internal/seed"
)

func main() {
	ingredientsPath := flag.String("ingredients", "", "Path to an ingredients JSON file (default: bundled catalog)")
	tagsPath := flag.String("tags", "", "Path to a tags YAML file (default: bundled catalog)")
	demo := flag.Bool("demo", false, "Also create demo users and recipes")
	numUsers := flag.Int("users", 10, "Number of demo users to create")
	recipesPerUser := flag.Int("recipes", 3, "Number of recipes per demo user")
	randSeed := flag.Int64("seed", 0, "Random seed for reproducible demo data (0 = random)")
	shouldClean := flag.Bool("clean", false, "Remove users and recipes before seeding demo data")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	res, err := seed.Catalog(ctx, db, seed.CatalogSources{IngredientsPath: *ingredientsPath, TagsPath: *tagsPath})
	if err != nil {
		log.Fatalf("❌ Catalog seeding failed: %v", err)
	}
	log.Printf("✓ %d ingredients and %d tags added", res.Ingredients, res.Tags)

	if !*demo {
		log.Println("✨ Catalog is up to date.")
		return
	}

	s := seed.NewSeeder(db)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	log.Printf("Target: %d users, %d recipes each", *numUsers, *recipesPerUser)
	out, err := s.Demo(ctx, seed.DemoOptions{Users: *numUsers, RecipesPerUser: *recipesPerUser, Seed: *randSeed})
	if err != nil {
		log.Fatalf("❌ Demo seeding failed: %v", err)
	}
	log.Printf("✓ %d users, %d recipes, %d favorites, %d cart items, %d subscriptions",
		out.Users, out.Recipes, out.Favorites, out.CartItems, out.Subscriptions)

	log.Println("✨ All done! Your database is now populated with demo data.")
	log.Printf("📧 All demo users have the password: %s", seed.DemoPassword)
}
