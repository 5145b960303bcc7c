package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"github.com/careorbit/clinic/internal/domain"
	"github.com/careorbit/clinic/internal/domain/directory"
	"github.com/careorbit/clinic/internal/domain/patient"
	"github.com/careorbit/clinic/internal/domain/visit"
	"github.com/careorbit/clinic/internal/platform/db"
	"github.com/careorbit/clinic/internal/platform/legacy"
	"github.com/careorbit/clinic/internal/platform/reporting"
	"github.com/careorbit/clinic/internal/seed"
)

// operator acts for maintenance commands that go through admin-only services.
var operator = domain.Principal{
	ID:   uuid.MustParse("00000000-0000-0000-0000-0000000c11a0"),
	Role: domain.RoleAdmin,
	Name: "clinic-server",
}

// minTempPassword is the shortest temporary password import-legacy accepts.
const minTempPassword = 8

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	withMigrator := func(fn func(ctx context.Context, m *db.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			m, err := db.NewMigrator(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer m.Close()
			return fn(cmd.Context(), m)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			applied, err := m.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", len(applied))
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			v, err := m.Down(ctx)
			if err != nil {
				return fmt.Errorf("rollback failed: %w", err)
			}
			fmt.Printf("Rolled back migration %d.\n", v)
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: withMigrator(func(ctx context.Context, m *db.Migrator) error {
			statuses, err := m.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			fmt.Printf("%-10s %-40s %s\n", "VERSION", "SOURCE", "STATUS")
			for _, s := range statuses {
				status := "pending"
				if s.Applied {
					status = "applied"
				}
				fmt.Printf("%-10d %-40s %s\n", s.Version, s.Source, status)
			}
			return nil
		}),
	})

	return cmd
}

func seedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample clinic (departments, staff, patients, visits)",
		RunE: func(cmd *cobra.Command, args []string) error {
			reset, _ := cmd.Flags().GetBool("reset")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.Env)
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if reset {
				if err := seed.Reset(ctx, pool); err != nil {
					return err
				}
				fmt.Println("Cleared clinic tables.")
			}

			s := seed.New(seed.Stores{
				Directory: directory.NewRepo(pool),
				Patients:  patient.NewRepo(pool),
				Visits:    visit.NewRepo(pool),
				Tx:        db.NewTxManager(pool),
			}, 0, logger)
			sum, err := s.Run(ctx)
			if err != nil {
				if errors.Is(err, domain.ErrDuplicate) {
					return fmt.Errorf("clinic already seeded, rerun with --reset: %w", err)
				}
				return err
			}

			fmt.Printf("Seeded %d departments, %d admins, %d doctors, %d patients, %d visits.\n",
				sum.Departments, sum.Admins, sum.Doctors, sum.Patients, sum.Visits)
			fmt.Println("Sample logins:")
			for _, line := range seed.Credentials() {
				fmt.Println("  " + line)
			}
			return nil
		},
	}
	cmd.Flags().Bool("reset", false, "Empty every clinic table before seeding")
	return cmd
}

func checkIntegrityCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-integrity",
		Short: "Report visits, doctors and prescriptions with dangling references",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			issues, err := db.NewIntegrityChecker(pool).Check(ctx)
			if err != nil {
				return err
			}
			if len(issues) == 0 {
				fmt.Println("No integrity issues found.")
				return nil
			}
			for _, is := range issues {
				fmt.Println(is.String())
			}
			return fmt.Errorf("%d integrity issue(s) found", len(issues))
		},
	}
}

func dbStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "db-stats",
		Short: "Print row counts, sizes and indexes per clinic table",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			stats, err := reporting.CollectDBStats(ctx, pool, db.Tables)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), stats)
		},
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exportFormat validates --format and picks the default output name.
func exportFormat(format, out string, now time.Time) (string, string, error) {
	format = strings.ToLower(format)
	if format != "csv" && format != "xlsx" {
		return "", "", fmt.Errorf("--format must be csv or xlsx, got %q", format)
	}
	if out == "" {
		out = fmt.Sprintf("patients_export_%s.%s", now.Format("20060102"), format)
	}
	return format, out, nil
}

func exportPatientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export-patients",
		Short: "Write the patient register to a CSV or XLSX file",
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			out, _ := cmd.Flags().GetString("out")
			format, out, err := exportFormat(format, out, time.Now())
			if err != nil {
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			loc, err := cfg.Location()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			svc := patient.NewService(patient.NewRepo(pool), nil, loc, newLogger(cfg.Env))
			table, err := svc.Export(ctx, operator)
			if err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if format == "xlsx" {
				err = reporting.WriteXLSX(w, "Patients", table)
			} else {
				err = reporting.WriteCSV(w, table)
			}
			if err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			if out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Exported %d patients to %s\n", len(table.Rows), out)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "csv", "Output format: csv or xlsx")
	cmd.Flags().String("out", "", `Output file ("-" for stdout); defaults to patients_export_<date>.<format>`)
	return cmd
}

func importLegacyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Import the previous MongoDB clinic database",
		Long: `Reads every collection of the previous MongoDB database, normalizes it and
writes it in one transaction. Records that would break a uniqueness or
reference rule are skipped and listed in the report. Legacy password hashes
cannot be verified, so every imported account gets --temp-password.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			uri, _ := cmd.Flags().GetString("uri")
			dbName, _ := cmd.Flags().GetString("db")
			tempPassword, _ := cmd.Flags().GetString("temp-password")
			dryRun, _ := cmd.Flags().GetBool("dry-run")

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if uri == "" {
				uri = cfg.LegacyMongoURI
			}
			if dbName == "" {
				dbName = cfg.LegacyMongoDB
			}
			if uri == "" {
				return errors.New("--uri or LEGACY_MONGO_URI is required")
			}
			if !dryRun && len(tempPassword) < minTempPassword {
				return fmt.Errorf("--temp-password must be at least %d characters", minTempPassword)
			}

			logger := component(newLogger(cfg.Env), "legacy")
			ctx := cmd.Context()

			client, err := legacy.Connect(ctx, uri)
			if err != nil {
				return err
			}
			defer func() { _ = client.Disconnect(context.Background()) }()

			snap, err := legacy.Load(ctx, client.Database(dbName))
			if err != nil {
				return err
			}

			opts := legacy.Options{Now: time.Now()}
			if !dryRun {
				hash, err := bcrypt.GenerateFromPassword([]byte(tempPassword), bcrypt.DefaultCost)
				if err != nil {
					return fmt.Errorf("hash temporary password: %w", err)
				}
				opts.PasswordHash = string(hash)
			}
			plan, report := legacy.Convert(snap, opts)
			logSkips(logger, report)
			if err := writeJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if dryRun {
				return nil
			}

			pool, err := openPool(ctx, cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := legacy.NewWriter(db.NewTxManager(pool), pool, logger).Apply(ctx, plan); err != nil {
				if errors.Is(err, domain.ErrDuplicate) {
					return fmt.Errorf("target already holds imported rows: %w", err)
				}
				return err
			}
			logger.Info().Int("skipped", len(report.Skipped)).Msg("legacy import complete")
			return nil
		},
	}
	cmd.Flags().String("uri", "", "MongoDB connection string (default LEGACY_MONGO_URI)")
	cmd.Flags().String("db", "", "MongoDB database name (default LEGACY_MONGO_DB)")
	cmd.Flags().String("temp-password", "", "Password assigned to every imported account")
	cmd.Flags().Bool("dry-run", false, "Convert and report without writing")
	return cmd
}

func logSkips(logger zerolog.Logger, r *legacy.Report) {
	for _, s := range r.Skipped {
		logger.Warn().Str("collection", s.Collection).Str("legacy_id", s.ID).Str("reason", s.Reason).Msg("skipped legacy record")
	}
}
