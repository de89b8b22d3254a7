// Command importer loads an advanced-training status workbook into the
// database. The "ADV" sheet holds active staff, "ADV_Removed" holds inactive
// ones; both follow the fixed 21-column layout decoded by internal/sheet.
// The registry synchronizer is intentionally left off during import.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"log/slog"

	"github.com/xuri/excelize/v2"

	dbfs "github.com/rtclab/traineetracker/db"
	"github.com/rtclab/traineetracker/internal/config"
	"github.com/rtclab/traineetracker/internal/db"
	"github.com/rtclab/traineetracker/internal/models"
	"github.com/rtclab/traineetracker/internal/repository/sqlite"
	"github.com/rtclab/traineetracker/internal/sheet"
	"github.com/rtclab/traineetracker/pkg/repository"
)

type stats struct {
	staffCreated    int
	staffUpdated    int
	trainingCreated int
	trainingUpdated int
	skipped         int
}

func main() {
	var (
		configPath = flag.String("config", "", "Path to config YAML file")
		workbook   = flag.String("file", "ADV_TrainingStatus.xlsx", "Path to the workbook")
	)
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	database, err := db.New(ctx, cfg.DatabasePath, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "DB error: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database, dbfs.Migrations, dbfs.SeedFiles); err != nil {
		fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
		os.Exit(1)
	}

	repo := sqlite.New(database, logger)

	f, err := excelize.OpenFile(*workbook)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Workbook error: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	var st stats
	for _, s := range []struct {
		name   string
		active bool
	}{
		{"ADV", true},
		{"ADV_Removed", false},
	} {
		rows, err := f.GetRows(s.name)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Sheet %q not found, skipping\n", s.name)
			continue
		}
		if err := importSheet(ctx, repo, rows, s.active, &st, logger); err != nil {
			fmt.Fprintf(os.Stderr, "Import error in sheet %q: %v\n", s.name, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Import complete: staff %d created / %d updated, trainings %d created / %d updated, %d rows skipped\n",
		st.staffCreated, st.staffUpdated, st.trainingCreated, st.trainingUpdated, st.skipped)
}

func importSheet(ctx context.Context, repo repository.AdvancedRepo, rows [][]string, active bool, st *stats, logger *slog.Logger) error {
	types, err := repo.ListTrainingTypes(ctx, false)
	if err != nil {
		return fmt.Errorf("list training types: %w", err)
	}
	typeIDs := make(map[string]int64, len(types))
	for _, tt := range types {
		typeIDs[tt.Name] = tt.ID
	}

	for i, row := range rows {
		if i < sheet.AdvancedDataStartRow-1 {
			continue
		}
		parsed, err := sheet.ParseAdvancedRow(row)
		if err != nil {
			logger.Warn("skipping row", slog.Int("row", i+1), slog.Any("err", err))
			st.skipped++
			continue
		}
		if parsed == nil {
			continue
		}

		staff, err := repo.GetAdvancedStaffByBadge(ctx, parsed.Badge)
		if err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
		if staff == nil {
			staff = &models.AdvancedStaff{
				BadgeNumber: parsed.Badge,
				FirstName:   parsed.FirstName,
				LastName:    parsed.LastName,
				Role:        parsed.Role,
				IsActive:    active,
			}
			id, err := repo.CreateAdvancedStaff(ctx, staff)
			if err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			staff.ID = id
			st.staffCreated++
		} else {
			staff.FirstName = parsed.FirstName
			staff.LastName = parsed.LastName
			staff.Role = parsed.Role
			staff.IsActive = active
			if err := repo.UpdateAdvancedStaff(ctx, staff); err != nil {
				return fmt.Errorf("row %d: %w", i+1, err)
			}
			st.staffUpdated++
		}

		for _, tr := range parsed.Trainings {
			typeID, ok := typeIDs[tr.TypeName]
			if !ok {
				logger.Warn("unknown training type", slog.String("type", tr.TypeName))
				continue
			}
			created, err := repo.UpsertTraining(ctx, &models.AdvancedTraining{
				StaffID:          staff.ID,
				TrainingTypeID:   typeID,
				CustomType:       tr.CustomType,
				CompletionDate:   tr.CompletionDate,
				ApproverInitials: tr.Approver,
				TerminationDate:  tr.TerminationDate,
			})
			if err != nil {
				return fmt.Errorf("row %d, %s: %w", i+1, tr.TypeName, err)
			}
			if created {
				st.trainingCreated++
			} else {
				st.trainingUpdated++
			}
		}
	}
	return nil
}
