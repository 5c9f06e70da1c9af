package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"gwi.com/interview-coach/internal/core"
)

func TestSummaryToExcel(t *testing.T) {
	summary := core.Summary{
		SessionID:    "s-1",
		UsedFallback: true,
		Entries: []core.SummaryEntry{
			{Index: 0, Question: "What is a closure?", Answer: "A function with state.", Answered: true,
				Feedback: "A closure captures its lexical scope.", Source: core.FeedbackDatabase, ReferenceSubstituted: true},
			{Index: 1, Question: "What are React hooks?", Answer: "State in functions.", Answered: true, Pending: true},
			{Index: 2, Question: "Explain REST principles."},
		},
	}

	data, err := SummaryToExcel(summary)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(rows), 4)
	assert.Equal(t, summaryHeaders, rows[0])
	assert.Equal(t, []string{"1", "What is a closure?", "A function with state.", "A closure captures its lexical scope.", "database", "false", "true"}, rows[1])
	assert.Equal(t, "true", rows[2][5])
	assert.Equal(t, "Explain REST principles.", rows[3][1])
	assert.Contains(t, rows[len(rows)-1][0], "question bank")
}
