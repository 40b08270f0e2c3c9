package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/qaforum/qaforum/config"
	"github.com/qaforum/qaforum/models"
	"github.com/qaforum/qaforum/services"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.json", "Path to the configuration file")
		migrate    = flag.Bool("migrate", false, "Create or update the database schema")
		listUsers  = flag.Bool("list", false, "List all users")
		createUser = flag.Bool("create", false, "Create a new local user")
		setRole    = flag.Bool("role", false, "Change a user's role")
		name       = flag.String("name", "", "User name for user operations")
		email      = flag.String("email", "", "Email for user creation")
		role       = flag.String("set", "", "Role for -role: USER, MODERATOR or ADMIN")
	)
	flag.Parse()

	if !*migrate && !*listUsers && !*createUser && !*setRole {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s -migrate\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -create -name alice -email alice@example.com\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -role -name alice -set MODERATOR\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -list\n", os.Args[0])
		os.Exit(1)
	}

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	config.Set(cfg)

	db, err := config.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	if err := config.Migrate(db, models.All()...); err != nil {
		log.Fatalf("Failed to apply database migrations: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	users := services.NewUserService(db, nil, cfg.AdminUsernames)

	switch {
	case *migrate:
		fmt.Println("✅ Schema is up to date")

	case *createUser:
		if *name == "" {
			log.Fatal("Name is required for user creation")
		}
		if err := createNewUser(ctx, users, *name, *email); err != nil {
			log.Fatalf("Failed to create user: %v", err)
		}

	case *listUsers:
		if err := listAllUsers(ctx, users); err != nil {
			log.Fatalf("Failed to list users: %v", err)
		}

	case *setRole:
		if *name == "" {
			log.Fatal("Name is required for role changes")
		}
		r, ok := models.ParseRole(*role)
		if !ok {
			log.Fatalf("Unknown role %q", *role)
		}
		u, err := users.SetRole(ctx, *name, r)
		if err != nil {
			log.Fatalf("Failed to change role: %v", err)
		}
		fmt.Printf("✅ '%s' is now %s\n", u.Name, r)
	}
}

func createNewUser(ctx context.Context, users *services.UserService, name, email string) error {
	fmt.Print("Enter password: ")
	password, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password: %v", err)
	}
	fmt.Println()

	fmt.Print("Confirm password: ")
	confirm, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return fmt.Errorf("failed to read password confirmation: %v", err)
	}
	fmt.Println()

	if string(password) != string(confirm) {
		return fmt.Errorf("passwords do not match")
	}
	if len(password) < 6 {
		return fmt.Errorf("password must be at least 6 characters long")
	}

	u, err := users.Register(ctx, services.RegisterInput{Name: name, Email: email, Password: string(password)})
	if err != nil {
		return err
	}
	fmt.Printf("✅ User '%s' created with id %d and role %s\n", u.Name, u.ID, u.Role)
	return nil
}

func listAllUsers(ctx context.Context, users *services.UserService) error {
	all, err := users.List(ctx)
	if err != nil {
		return err
	}
	if len(all) == 0 {
		fmt.Println("No users found")
		return nil
	}

	fmt.Printf("Found %d users:\n\n", len(all))
	fmt.Printf("%-6s %-10s %-24s %-30s %-10s %s\n", "ID", "Role", "Name", "Email", "Provider", "Created")
	for _, u := range all {
		provider := u.Provider
		if provider == "" {
			provider = "local"
		}
		fmt.Printf("%-6d %-10s %-24s %-30s %-10s %s\n", u.ID, u.Role, u.Name, u.Email, provider, u.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}
