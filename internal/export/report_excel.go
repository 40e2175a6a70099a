package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/kmelentyev/rosterd/internal/models"
)

type SheetSpec struct {
	Title  string
	Header []string
	Rows   [][]string
}

type ReportWorkbook struct {
	File *excelize.File
}

// SnapshotSheets renders a dashboard snapshot into sheet specs: one sheet
// per analytics view.
func SnapshotSheets(s *models.Snapshot) []SheetSpec {
	rosterRows := make([][]string, 0, len(s.Classrooms))
	for _, c := range s.Classrooms {
		rosterRows = append(rosterRows, []string{
			c.Name, c.TeacherNames, strconv.Itoa(c.StudentCount),
		})
	}
	engRows := make([][]string, 0, len(s.StudentEngagement))
	for _, r := range s.StudentEngagement {
		engRows = append(engRows, []string{
			r.FullName,
			strconv.Itoa(r.LessonsCompleted),
			strconv.Itoa(r.TotalLessons),
			strconv.Itoa(r.ActivitiesLogged),
			fmt.Sprintf("%.1f", r.EngagementRate),
		})
	}
	perfRows := make([][]string, 0, len(s.TeacherPerformance))
	for _, r := range s.TeacherPerformance {
		perfRows = append(perfRows, []string{
			r.FullName,
			strconv.Itoa(r.ClassroomsAssigned),
			strconv.Itoa(r.TotalStudents),
			fmt.Sprintf("%.1f", r.AvgEngagement),
		})
	}
	return []SheetSpec{
		{Title: "Classrooms", Header: []string{"Classroom", "Teachers", "Students"}, Rows: rosterRows},
		{Title: "Engagement", Header: []string{"Student", "Completed", "Total lessons", "Activities", "Rate %"}, Rows: engRows},
		{Title: "Performance", Header: []string{"Teacher", "Classrooms", "Students", "Avg engagement %"}, Rows: perfRows},
	}
}

func NewReportWorkbook(sheets []SheetSpec) (*ReportWorkbook, error) {
	f := excelize.NewFile()

	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	for i, s := range sheets {
		name := s.Title
		if i == 0 {
			if err := f.SetSheetName("Sheet1", name); err != nil {
				return nil, fmt.Errorf("rename sheet: %w", err)
			}
		} else {
			if _, err := f.NewSheet(name); err != nil {
				return nil, fmt.Errorf("new sheet: %w", err)
			}
		}
		for col, h := range s.Header {
			cell := fmt.Sprintf("%s1", colName(col+1))
			if err := f.SetCellStr(name, cell, h); err != nil {
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
		// header style + autofilter on the first row only
		end := colName(len(s.Header)) + "1"
		_ = f.SetCellStyle(name, "A1", end, bold)
		_ = f.AutoFilter(name, "A1:"+end, nil)

		for r, row := range s.Rows {
			for c, val := range row {
				cell := fmt.Sprintf("%s%d", colName(c+1), r+2)
				if err := f.SetCellStr(name, cell, val); err != nil {
					return nil, fmt.Errorf("set cell %s: %w", cell, err)
				}
			}
		}
		// heuristic width from the header and the first rows
		for c := 1; c <= len(s.Header); c++ {
			maxim := len(s.Header[c-1])
			for r := 0; r < minim(50, len(s.Rows)); r++ {
				if l := len(s.Rows[r][c-1]); l > maxim {
					maxim = l
				}
			}
			w := float64(maxim) * 0.9
			if w < 12 {
				w = 12
			}
			if w > 40 {
				w = 40
			}
			_ = f.SetColWidth(name, colName(c), colName(c), w)
		}
	}
	return &ReportWorkbook{File: f}, nil
}

func (w *ReportWorkbook) SaveTemp(schoolID int64) (string, error) {
	name := fmt.Sprintf("engagement_%d_%s.xlsx", schoolID, time.Now().Format("2006-01-02"))
	path := "/tmp/" + name
	return path, w.File.SaveAs(path)
}

// helpers
func colName(n int) string {
	s := ""
	for n > 0 {
		n--
		s = string(rune('A'+(n%26))) + s
		n /= 26
	}
	return s
}

func minim(a, b int) int {
	if a < b {
		return a
	}
	return b
}
