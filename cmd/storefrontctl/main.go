// cmd/storefrontctl/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/clayfire/storefront-api/internal/config"
	"github.com/clayfire/storefront-api/internal/database"
	"github.com/clayfire/storefront-api/internal/services"
	"github.com/clayfire/storefront-api/internal/utils"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "storefrontctl",
		Short:        "operator tooling for the storefront back office",
		SilenceUsage: true,
	}
	rootCmd.AddCommand(
		migrateCommand(),
		seedAdminCommand(),
		issueTokenCommand(),
		importCommand(),
		exportCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logrus.SetLevel(level)
	}
	return cfg, nil
}

func openDatabase() (*config.Config, *gorm.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	db, err := database.Initialize(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func migrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "apply the schema to the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.RunMigrations(db); err != nil {
				return err
			}
			fmt.Println("Migrations applied")
			return nil
		},
	}
}

func seedAdminCommand() *cobra.Command {
	var email, authID, name string

	cmd := &cobra.Command{
		Use:   "seed-admin",
		Short: "create or promote an admin profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := database.RunMigrations(db); err != nil {
				return err
			}

			profile, err := database.SeedAdmin(db, authID, email, name)
			if err != nil {
				return err
			}
			fmt.Printf("Admin profile %s (%s)\n", profile.ID, profile.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email address")
	cmd.Flags().StringVar(&authID, "auth-id", "", "subject of the admin's auth provider tokens")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("auth-id")
	return cmd
}

func issueTokenCommand() *cobra.Command {
	var email string
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "issue-token [auth-id]",
		Short: "sign a development session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.IsProduction() {
				return fmt.Errorf("refusing to issue tokens in production")
			}

			utils.SetJWTSecret(cfg.JWT.SecretKey)
			utils.SetJWTIssuer(cfg.JWT.Issuer)

			if ttl == 0 {
				ttl = time.Duration(cfg.JWT.AccessTokenTTL) * time.Hour
			}

			token, err := utils.GenerateJWT(args[0], email, ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "email claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default from JWT_ACCESS_TTL)")
	return cmd
}

func importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import [file.csv]",
		Short: "bulk import products from a CSV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			content, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			importService := services.NewImportService(db, cfg, services.NewCategoryService(db))
			result, err := importService.ImportProducts(context.Background(), filepath.Base(args[0]), content)
			if err != nil {
				return err
			}

			out, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func exportCommand() *cobra.Command {
	var (
		req    services.ExportRequest
		fields string
		start  string
		end    string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "export products to CSV or XLSX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDatabase()
			if err != nil {
				return err
			}
			defer database.Close(db)

			req.Fields = splitList(fields)
			if start != "" || end != "" {
				req.DateRange = &services.DateRange{Start: start, End: end}
			}
			if err := utils.ValidateStruct(&req); err != nil {
				return err
			}

			file, err := services.NewExportService(db).ExportProducts(context.Background(), &req)
			if err != nil {
				return err
			}

			if output == "" {
				output = file.Filename
			}
			if err := os.WriteFile(output, file.Data, 0644); err != nil {
				return err
			}
			fmt.Printf("Exported %d products to %s\n", file.Rows, output)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.Format, "format", services.ExportFormatCSV, "csv or xlsx")
	cmd.Flags().StringVar(&fields, "fields", "name,sku,price,inventory_quantity,is_active", "comma separated fields")
	cmd.Flags().BoolVar(&req.IncludeImages, "include-images", false, "add an image_urls column")
	cmd.Flags().BoolVar(&req.IncludeInactive, "include-inactive", false, "include inactive products")
	cmd.Flags().StringSliceVar(&req.Categories, "category", nil, "category ids to include")
	cmd.Flags().StringVar(&start, "from", "", "first creation day, YYYY-MM-DD")
	cmd.Flags().StringVar(&end, "to", "", "last creation day, YYYY-MM-DD")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output path (default products-export-<date>.<format>)")
	return cmd
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
