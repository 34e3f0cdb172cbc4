package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/terra-clan/interview-engine/internal/models"
)

// Excel caps a cell at 32767 characters
const maxCellLength = 32767

const (
	summarySheet     = "Summary"
	responsesSheet   = "Responses"
	transcriptsSheet = "Transcripts"
)

// WriteWorkbook writes an .xlsx report of one candidate's responses to w
func WriteWorkbook(w io.Writer, email string, records []*models.ResponseRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName("Sheet1", summarySheet)
	if _, err := f.NewSheet(responsesSheet); err != nil {
		return fmt.Errorf("failed to create responses sheet: %w", err)
	}
	if _, err := f.NewSheet(transcriptsSheet); err != nil {
		return fmt.Errorf("failed to create transcripts sheet: %w", err)
	}

	styles, err := newStyles(f)
	if err != nil {
		return fmt.Errorf("failed to create styles: %w", err)
	}

	if err := createSummarySheet(f, styles, email, records); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	if err := createResponsesSheet(f, styles, records); err != nil {
		return fmt.Errorf("failed to create responses sheet: %w", err)
	}
	if err := createTranscriptsSheet(f, styles, records); err != nil {
		return fmt.Errorf("failed to create transcripts sheet: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

type sheetStyles struct {
	header int
	label  int
	wrap   int
}

func newStyles(f *excelize.File) (*sheetStyles, error) {
	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 12, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "left", Vertical: "center"},
	})
	if err != nil {
		return nil, err
	}

	label, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
	})
	if err != nil {
		return nil, err
	}

	wrap, err := f.NewStyle(&excelize.Style{
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	if err != nil {
		return nil, err
	}

	return &sheetStyles{header: header, label: label, wrap: wrap}, nil
}

func createSummarySheet(f *excelize.File, s *sheetStyles, email string, records []*models.ResponseRecord) error {
	sheet := summarySheet
	f.SetColWidth(sheet, "A", "A", 28)
	f.SetColWidth(sheet, "B", "B", 40)

	row := 1
	f.SetCellValue(sheet, cell("A", row), "Interview Responses Report")
	f.SetCellStyle(sheet, cell("A", row), cell("B", row), s.header)
	f.MergeCell(sheet, cell("A", row), cell("B", row))
	row += 2

	label := func(name string, value any) {
		f.SetCellValue(sheet, cell("A", row), name)
		f.SetCellStyle(sheet, cell("A", row), cell("A", row), s.label)
		f.SetCellValue(sheet, cell("B", row), value)
		row++
	}

	label("Candidate Email:", email)
	label("Generated:", time.Now().UTC().Format("2006-01-02 15:04:05 MST"))
	label("Total Responses:", len(records))
	row++

	f.SetCellValue(sheet, cell("A", row), "Per Stage")
	f.SetCellStyle(sheet, cell("A", row), cell("B", row), s.header)
	f.MergeCell(sheet, cell("A", row), cell("B", row))
	row++

	counts := make(map[models.InterviewType]int)
	seconds := make(map[models.InterviewType]int)
	for _, rec := range records {
		counts[rec.InterviewType]++
		seconds[rec.InterviewType] += rec.TimeSpentSeconds
	}

	total := 0
	for _, stage := range models.InterviewTypes {
		label(string(stage)+" responses:", counts[stage])
		label(string(stage)+" time spent:", formatSeconds(seconds[stage]))
		total += seconds[stage]
	}
	label("Total time spent:", formatSeconds(total))

	return nil
}

func createResponsesSheet(f *excelize.File, s *sheetStyles, records []*models.ResponseRecord) error {
	sheet := responsesSheet
	headers := []string{"Stage", "Task ID", "Task Title", "Difficulty", "Time Spent", "Started At", "Submitted At", "Response"}

	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, cell(col, 1), h)
	}
	f.SetCellStyle(sheet, "A1", cell("H", 1), s.header)

	f.SetColWidth(sheet, "A", "B", 14)
	f.SetColWidth(sheet, "C", "C", 40)
	f.SetColWidth(sheet, "D", "E", 12)
	f.SetColWidth(sheet, "F", "G", 22)
	f.SetColWidth(sheet, "H", "H", 80)

	for i, rec := range records {
		row := i + 2
		values := []any{
			string(rec.InterviewType),
			string(rec.TaskID),
			rec.TaskTitle,
			orNA(rec.MetaString("difficulty")),
			formatSeconds(rec.TimeSpentSeconds),
			rec.StartedAt.UTC().Format(time.RFC3339),
			rec.SubmittedAt.UTC().Format(time.RFC3339),
			clip(responseText(rec)),
		}
		if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
			return err
		}
		f.SetCellStyle(sheet, cell("H", row), cell("H", row), s.wrap)
	}

	if len(records) > 0 {
		if err := f.AutoFilter(sheet, fmt.Sprintf("A1:H%d", len(records)+1), nil); err != nil {
			return err
		}
	}
	return nil
}

func createTranscriptsSheet(f *excelize.File, s *sheetStyles, records []*models.ResponseRecord) error {
	sheet := transcriptsSheet
	headers := []any{"Stage", "Task Title", "Turn", "Speaker", "Text"}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}
	f.SetCellStyle(sheet, "A1", "E1", s.header)

	f.SetColWidth(sheet, "A", "A", 14)
	f.SetColWidth(sheet, "B", "B", 36)
	f.SetColWidth(sheet, "C", "D", 12)
	f.SetColWidth(sheet, "E", "E", 90)

	row := 2
	for _, rec := range records {
		for i, turn := range rec.ChatHistory {
			speaker := "AI"
			if turn.Role == models.RoleCandidate {
				speaker = "Candidate"
			}
			values := []any{string(rec.InterviewType), rec.TaskTitle, i + 1, speaker, clip(turn.Text)}
			if err := f.SetSheetRow(sheet, cell("A", row), &values); err != nil {
				return err
			}
			f.SetCellStyle(sheet, cell("E", row), cell("E", row), s.wrap)
			row++
		}
	}
	return nil
}

// responseText prefers the transcript summary over the serialised JSON of conversational records
func responseText(rec *models.ResponseRecord) string {
	if len(rec.ChatHistory) > 0 {
		return fmt.Sprintf("Conversation of %d turns (%d from the candidate), see Transcripts",
			len(rec.ChatHistory), models.CandidateTurns(rec.ChatHistory))
	}
	return rec.Response
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

func clip(s string) string {
	if len(s) <= maxCellLength {
		return s
	}
	return s[:maxCellLength-3] + "..."
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func formatSeconds(n int) string {
	return fmt.Sprintf("%dm %ds", n/60, n%60)
}
