package main

import (
	"context"
	"path/filepath"
	"testing"
)

func resetJournalFlags(t *testing.T) {
	t.Helper()
	saved := journalFlags
	journalFlags.path = ""
	journalFlags.event = ""
	journalFlags.verdict = ""
	journalFlags.mode = ""
	journalFlags.since = 0
	journalFlags.limit = 100
	journalFlags.format = "text"
	journalFlags.retentionDays = 90
	journalFlags.maxRecords = 0
	journalFlags.archive = false
	journalFlags.schedule = ""
	t.Cleanup(func() { journalFlags = saved })
}

func TestPruneJournal_NoPathFails(t *testing.T) {
	resetJournalFlags(t)
	t.Setenv("WARDEN_JOURNAL_PATH", "")

	if err := pruneJournal(journalPruneCmd, nil); err == nil {
		t.Fatal("pruneJournal() error = nil, want missing path error")
	}
}

func TestPruneJournal_OnceOnEmptyJournal(t *testing.T) {
	resetJournalFlags(t)
	journalFlags.path = filepath.Join(t.TempDir(), "journal.db")

	journalPruneCmd.SetContext(context.Background())
	if err := pruneJournal(journalPruneCmd, nil); err != nil {
		t.Fatalf("pruneJournal() error = %v", err)
	}
}

func TestPruneJournal_ScheduledRunsUntilCancelled(t *testing.T) {
	resetJournalFlags(t)
	journalFlags.path = filepath.Join(t.TempDir(), "journal.db")
	journalFlags.schedule = "0 3 * * *"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	journalPruneCmd.SetContext(ctx)

	if err := pruneJournal(journalPruneCmd, nil); err != nil {
		t.Fatalf("pruneJournal() error = %v", err)
	}
}

func TestPruneJournal_InvalidScheduleFails(t *testing.T) {
	resetJournalFlags(t)
	journalFlags.path = filepath.Join(t.TempDir(), "journal.db")
	journalFlags.schedule = "every day at three"

	journalPruneCmd.SetContext(context.Background())
	if err := pruneJournal(journalPruneCmd, nil); err == nil {
		t.Fatal("pruneJournal() error = nil, want invalid schedule error")
	}
}
