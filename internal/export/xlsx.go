package export

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"

	"gwi.com/interview-coach/internal/core"
)

const summarySheet = "Summary"

var summaryHeaders = []string{
	"#", "Question", "Answer", "Feedback", "Feedback Source", "Pending", "Reference Answer Used",
}

// SummaryToExcel renders an interview summary as an xlsx workbook.
func SummaryToExcel(summary core.Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("failed to create Excel sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("failed to remove default sheet: %w", err)
	}

	for i, header := range summaryHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(summarySheet, cell, header); err != nil {
			return nil, fmt.Errorf("failed to write header %s: %w", header, err)
		}
	}

	for rowIndex, entry := range summary.Entries {
		row := []interface{}{
			entry.Index + 1,
			entry.Question,
			entry.Answer,
			entry.Feedback,
			entry.Source,
			strconv.FormatBool(entry.Pending),
			strconv.FormatBool(entry.ReferenceSubstituted),
		}
		for colIndex, value := range row {
			cell, _ := excelize.CoordinatesToCellName(colIndex+1, rowIndex+2)
			if err := f.SetCellValue(summarySheet, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
			}
		}
	}

	// Flag canned content so nobody mistakes it for personalised feedback.
	if summary.UsedFallback {
		noteRow := len(summary.Entries) + 3
		cell, _ := excelize.CoordinatesToCellName(1, noteRow)
		if err := f.SetCellValue(summarySheet, cell, "Questions came from the question bank; feedback may be reference answers."); err != nil {
			return nil, fmt.Errorf("failed to write fallback note: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}
