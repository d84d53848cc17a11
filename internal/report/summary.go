package report

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/xaenox/keep-migrate/internal/migrate"
)

// WriteInventory prints the counts of one account.
func WriteInventory(w io.Writer, account string, inv migrate.Inventory) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\n", account)
	fmt.Fprintf(tw, "  Total notes (excluding trash)\t%d\n", inv.Total)
	fmt.Fprintf(tw, "  Archived notes\t%d\n", inv.Archived)
	fmt.Fprintf(tw, "  Active notes\t%d\n", inv.Active)
	return tw.Flush()
}

// WriteSummary prints the outcome of a run. Every counter is printed, even
// when it is zero.
func WriteSummary(w io.Writer, sum migrate.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	rows := []struct {
		label string
		value int
	}{
		{"Source notes (excluding trash)", sum.Source.Total},
		{"  archived", sum.Source.Archived},
		{"  active", sum.Source.Active},
		{"Labels already present", sum.Labels.Existing},
		{"Labels created", sum.Labels.Created},
		{"Labels failed", sum.Labels.Failed},
		{"Notes copied", sum.Notes.Copied},
		{"Notes already in destination", sum.Notes.SkippedExisting},
		{"Notes skipped (trashed)", sum.Notes.SkippedTrashed},
		{"Notes failed", sum.Notes.Failed},
		{"Labels not attached", sum.Notes.SkippedLabels},
		{"Attachments failed", sum.Notes.FailedAttachments},
		{"Notes with reminders in source", sum.Reminders.WithReminders},
		{"Notes updated with reminders", sum.Reminders.Copied},
		{"Reminders without destination note", sum.Reminders.Unmatched},
		{"Reminders on duplicate notes", sum.Reminders.Ambiguous},
		{"Reminders failed", sum.Reminders.Failed},
		{"Destination notes (excluding trash)", sum.Destination.Total},
	}

	fmt.Fprintln(tw, "Migration summary")
	for _, r := range rows {
		fmt.Fprintf(tw, "  %s\t%d\n", r.label, r.value)
	}
	return tw.Flush()
}

// WriteReminders prints the outcome of a reminder pass on its own.
func WriteReminders(w io.Writer, res migrate.ReminderResult) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "Reminder summary")
	fmt.Fprintf(tw, "  Notes with reminders in source\t%d\n", res.WithReminders)
	fmt.Fprintf(tw, "  Notes updated with reminders\t%d\n", res.Copied)
	fmt.Fprintf(tw, "  Reminders without destination note\t%d\n", res.Unmatched)
	fmt.Fprintf(tw, "  Reminders on duplicate notes\t%d\n", res.Ambiguous)
	fmt.Fprintf(tw, "  Reminders failed\t%d\n", res.Failed)
	return tw.Flush()
}

// Clean reports whether the run copied everything it tried to copy.
func Clean(sum migrate.Summary) bool {
	return sum.Labels.Failed == 0 &&
		sum.Notes.Failed == 0 &&
		sum.Notes.FailedAttachments == 0 &&
		sum.Reminders.Failed == 0 &&
		sum.Reminders.Unmatched == 0
}
