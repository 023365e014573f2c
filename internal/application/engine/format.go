package engine

import (
	"fmt"
	"strings"

	"github.com/chrxmium/expense-bot/internal/domain/entity"
)

// formatDraft renders the five-field summary shown before confirmation.
// Amounts always render with exactly two decimal digits.
func formatDraft(header string, draft *entity.ExpenseDraft) string {
	var b strings.Builder
	b.WriteString("📌 ")
	b.WriteString(header)
	b.WriteString("\n")
	writeFields(&b, draft)
	b.WriteString("\nIs this correct?")
	return b.String()
}

// formatRecorded renders a persisted record including its identifier, so
// a later edit/delete reply can resolve it directly from the message.
func formatRecorded(expense *entity.Expense) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ Recorded expense #%d:\n", expense.ID)
	writeFields(&b, expense.DraftOf())
	return b.String()
}

func writeFields(b *strings.Builder, draft *entity.ExpenseDraft) {
	fmt.Fprintf(b, "📈 Currency: %s\n", draft.Currency)
	fmt.Fprintf(b, "💰 Amount: %s\n", entity.FormatAmount(draft.Amount))
	fmt.Fprintf(b, "📂 Category: %s\n", draft.Category)
	fmt.Fprintf(b, "📝 Description: %s\n", draft.Description)
	fmt.Fprintf(b, "📅 Date: %s\n", draft.Date.Format(entity.DateLayout))
}
