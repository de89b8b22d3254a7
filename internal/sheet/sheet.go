// Package sheet converts between registry entities and the fixed-layout
// spreadsheet rows used for roster export and advanced-training import.
// Rows are plain []string slices; the actual workbook I/O lives in the
// importer command.
package sheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/rtclab/traineetracker/internal/models"
)

// Orientation roster layout. Column numbers are 1-indexed to match the
// workbook template; badge and name occupy columns 1 and 2, each task order
// has a fixed mark column.
const (
	OrientationBadgeCol = 1
	OrientationNameCol  = 2
	OrientationLastCol  = 19
	OrientationMark     = "X"
)

// orientationTaskCols maps a task's order to its mark column in the roster
// template. Orders 3 and beyond skip columns 5 and 6, which the template
// reserves for merged header cells.
var orientationTaskCols = map[int]int{
	1: 3, 2: 4,
	3: 7, 4: 8, 5: 9, 6: 10, 7: 11, 8: 12, 9: 13,
	10: 14, 11: 15, 12: 16, 13: 17, 14: 18, 15: 19,
}

// OrientationTaskColumn returns the 1-indexed mark column for a task order.
func OrientationTaskColumn(order int) (int, bool) {
	col, ok := orientationTaskCols[order]
	return col, ok
}

// OrientationRow renders one trainee as a roster row. signedOrders holds the
// orders of the tasks the trainee has signed off.
func OrientationRow(t *models.Trainee, signedOrders map[int]bool) []string {
	row := make([]string, OrientationLastCol)
	row[OrientationBadgeCol-1] = t.BadgeNumber
	row[OrientationNameCol-1] = t.FullName()
	for order := range signedOrders {
		if col, ok := orientationTaskCols[order]; ok {
			row[col-1] = OrientationMark
		}
	}
	return row
}

// Advanced-training layout. Data rows start at AdvancedDataStartRow; rows 1
// and 2 hold headers. Each training type occupies a fixed column triple of
// completion date, approver initials and termination date; the two "Other"
// types carry an extra custom-type column before their triple.
const (
	AdvancedDataStartRow = 3

	advBadgeCol = 1
	advLastCol  = 2
	advFirstCol = 3
	advRoleCol  = 4

	// AdvancedRowWidth is the number of columns in one staff row.
	AdvancedRowWidth = 21
)

// advancedBlock describes where one training type lives in the row.
type advancedBlock struct {
	typeName string
	typeCol  int // 0 when the type has no custom-type column
	dateCol  int
	apprCol  int
	termCol  int
}

var advancedBlocks = []advancedBlock{
	{typeName: "KP Training", dateCol: 5, apprCol: 6, termCol: 7},
	{typeName: "Escort Training", dateCol: 8, apprCol: 9, termCol: 10},
	{typeName: "ExpSamp Training", dateCol: 11, apprCol: 12, termCol: 13},
	{typeName: "Other Training", typeCol: 14, dateCol: 15, apprCol: 16, termCol: 17},
	{typeName: "Other Training 2", typeCol: 18, dateCol: 19, apprCol: 20, termCol: 21},
}

// ParseSheetDate parses a spreadsheet date cell. Accepts MM/DD/YYYY and
// YYYY-MM-DD, tolerates a leading '~' used in the source workbooks for
// approximate dates, and returns nil for an empty cell.
func ParseSheetDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "~"))
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"1/2/2006", "01/02/2006", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			t = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unparseable date %q", s)
}

// FormatSheetDate renders a date in the workbook's MM/DD/YYYY style.
func FormatSheetDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("01/02/2006")
}

// ParsedTraining is one training block read from a staff row. Only blocks
// with a completion date or an approver are materialized.
type ParsedTraining struct {
	TypeName        string
	CustomType      string
	CompletionDate  *time.Time
	Approver        string
	TerminationDate *time.Time
}

// ParsedStaffRow is one advanced-staff row with its training blocks.
type ParsedStaffRow struct {
	Badge     string
	LastName  string
	FirstName string
	Role      string
	Trainings []ParsedTraining
}

func cell(row []string, col int) string {
	if col < 1 || col > len(row) {
		return ""
	}
	return strings.TrimSpace(row[col-1])
}

// ParseAdvancedRow reads one staff row. Returns (nil, nil) for rows with an
// empty badge cell so callers can iterate a sheet without counting blanks as
// failures; a badge without a full name is an error.
func ParseAdvancedRow(row []string) (*ParsedStaffRow, error) {
	badge := models.NormalizeAdvancedBadge(cell(row, advBadgeCol))
	if badge == "" {
		return nil, nil
	}
	last := cell(row, advLastCol)
	first := cell(row, advFirstCol)
	if last == "" || first == "" {
		return nil, fmt.Errorf("badge %s: missing name", badge)
	}
	role := cell(row, advRoleCol)
	if role == "" || !models.ValidRole(role) {
		role = models.RoleOther
	}

	parsed := &ParsedStaffRow{
		Badge:     badge,
		LastName:  last,
		FirstName: first,
		Role:      role,
	}
	for _, blk := range advancedBlocks {
		completion, err := ParseSheetDate(cell(row, blk.dateCol))
		if err != nil {
			return nil, fmt.Errorf("badge %s, %s: %w", badge, blk.typeName, err)
		}
		termination, err := ParseSheetDate(cell(row, blk.termCol))
		if err != nil {
			return nil, fmt.Errorf("badge %s, %s: %w", badge, blk.typeName, err)
		}
		approver := cell(row, blk.apprCol)
		customType := ""
		if blk.typeCol != 0 {
			customType = cell(row, blk.typeCol)
		}
		if completion == nil && approver == "" {
			continue
		}
		parsed.Trainings = append(parsed.Trainings, ParsedTraining{
			TypeName:        blk.typeName,
			CustomType:      customType,
			CompletionDate:  completion,
			Approver:        approver,
			TerminationDate: termination,
		})
	}
	return parsed, nil
}

// AdvancedRow renders one staff member and their trainings as a fixed-layout
// row. trainings is keyed by training type name; when a type has several
// records (custom types) the first one wins, matching the single block the
// layout provides per type.
func AdvancedRow(s *models.AdvancedStaff, trainings map[string]models.AdvancedTraining) []string {
	row := make([]string, AdvancedRowWidth)
	row[advBadgeCol-1] = s.BadgeNumber
	row[advLastCol-1] = s.LastName
	row[advFirstCol-1] = s.FirstName
	row[advRoleCol-1] = s.Role
	for _, blk := range advancedBlocks {
		tr, ok := trainings[blk.typeName]
		if !ok {
			continue
		}
		if blk.typeCol != 0 {
			row[blk.typeCol-1] = tr.CustomType
		}
		row[blk.dateCol-1] = FormatSheetDate(tr.CompletionDate)
		row[blk.apprCol-1] = tr.ApproverInitials
		row[blk.termCol-1] = FormatSheetDate(tr.TerminationDate)
	}
	return row
}
