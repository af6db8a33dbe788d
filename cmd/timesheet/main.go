package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"timesheet/internal/auth"
	"timesheet/internal/config"
	"timesheet/internal/db"
	"timesheet/internal/export"
	"timesheet/internal/model"
	"timesheet/internal/web"
)

var (
	configPathFlag string
	dbPathFlag     string
	portFlag       int

	createUserEmail    string
	createUserPassword string
	createUserFirst    string
	createUserLast     string
	createUserRole     string
	createUserApproved bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "timesheet",
		Short:         "Timesheet and activity reporting service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPathFlag, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "sqlite db path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serveCmd.Flags().IntVar(&portFlag, "port", 0, "listen port")

	createUserCmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a user account",
		Args:  cobra.NoArgs,
		RunE:  runCreateUser,
	}
	createUserCmd.Flags().StringVar(&createUserEmail, "email", "", "email address (required)")
	createUserCmd.Flags().StringVar(&createUserPassword, "password", "", "password (required)")
	createUserCmd.Flags().StringVar(&createUserFirst, "first-name", "", "first name")
	createUserCmd.Flags().StringVar(&createUserLast, "last-name", "", "last name")
	createUserCmd.Flags().StringVar(&createUserRole, "role", "reporter", "role: reporter, manager or admin")
	createUserCmd.Flags().BoolVar(&createUserApproved, "approved", true, "mark the account approved")
	_ = createUserCmd.MarkFlagRequired("email")
	_ = createUserCmd.MarkFlagRequired("password")

	importCmd := &cobra.Command{
		Use:   "import-activities <file.xlsx>",
		Short: "Import the activity catalogue from an XLSX file",
		Args:  cobra.ExactArgs(1),
		RunE:  runImportActivities,
	}

	rootCmd.AddCommand(serveCmd, createUserCmd, importCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if portFlag != 0 {
		cfg.Port = portFlag
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}

	sessionKey, err := cfg.SessionKey()
	if err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}

	server := web.NewServer(store, auth.NewSessions(sessionKey), auth.NewTokenSigner(sessionKey))
	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Timesheet server running at http://localhost%s", addr)
	return http.ListenAndServe(addr, server.Handler())
}

func runCreateUser(cmd *cobra.Command, args []string) error {
	cfgPath, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}

	hash, err := auth.HashPassword(createUserPassword)
	if err != nil {
		return err
	}

	user, err := store.CreateUser(cmd.Context(), db.UserInput{
		Email:        createUserEmail,
		PasswordHash: hash,
		FirstName:    createUserFirst,
		LastName:     createUserLast,
		Role:         roleFromFlag(createUserRole),
		Approved:     createUserApproved,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Created user %s (%s)\n", user.Email, user.Role)
	return nil
}

func runImportActivities(cmd *cobra.Command, args []string) error {
	cfgPath, cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return err
	}

	store, err := openStore(cfg.DBPath)
	if err != nil {
		return err
	}

	file, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer file.Close()

	activities, err := export.ReadActivities(file)
	if err != nil {
		return err
	}

	count, err := store.ImportActivities(cmd.Context(), activities)
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d activities from %s\n", count, args[0])
	return nil
}

func roleFromFlag(value string) model.Role {
	return model.Role(strings.ToLower(strings.TrimSpace(value)))
}

func loadConfig() (string, config.Config, error) {
	cfgPath := configPathFlag
	if cfgPath == "" {
		path, err := config.DefaultConfigPath()
		if err != nil {
			return "", config.Config{}, err
		}
		cfgPath = path
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return "", config.Config{}, err
	}

	if dbPathFlag != "" {
		cfg.DBPath = dbPathFlag
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "timesheet.db")
	}
	return cfgPath, cfg, nil
}

func openStore(dbPath string) (*db.Store, error) {
	if err := config.EnsureDir(dbPath); err != nil {
		return nil, err
	}

	sqlDB, err := db.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return db.NewStore(sqlDB), nil
}
