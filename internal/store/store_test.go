package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/verte-zerg/analogrec/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "data", "sessions.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

func TestInsertAndListSessions(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		start := time.Unix(1700000000, 0).Add(time.Duration(i) * time.Minute)
		id, err := st.InsertSession(ctx, model.Session{
			StartedAt:  start,
			EndedAt:    start.Add(10 * time.Second),
			LogPath:    filepath.Join("logs", "session.csv"),
			Records:    100 * (i + 1),
			ReadErrors: i,
			BufferSize: 32,
			StartCode:  44,
			StopCode:   41,
		})
		if err != nil {
			t.Fatalf("insert session: %v", err)
		}
		if id == "" {
			t.Fatalf("expected generated id")
		}
		ids = append(ids, id)
	}

	all, err := st.ListSessions(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if all[0].ID != ids[0] || all[2].ID != ids[2] {
		t.Fatalf("sessions not ordered oldest first: %+v", all)
	}
	if all[1].Records != 200 || all[1].ReadErrors != 1 || all[1].StartCode != 44 || all[1].StopCode != 41 {
		t.Fatalf("unexpected session fields: %+v", all[1])
	}
	if all[1].EndedAt.Sub(all[1].StartedAt) != 10*time.Second {
		t.Fatalf("unexpected duration: %v", all[1].EndedAt.Sub(all[1].StartedAt))
	}

	last, err := st.ListSessions(ctx, 2)
	if err != nil {
		t.Fatalf("list last: %v", err)
	}
	if len(last) != 2 || last[0].ID != ids[1] || last[1].ID != ids[2] {
		t.Fatalf("unexpected last sessions: %+v", last)
	}
}

func TestGetSession(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()
	id, err := st.InsertSession(ctx, model.Session{
		ID:        "fixed-id",
		StartedAt: time.Unix(10, 0),
		EndedAt:   time.Unix(20, 0),
		LogPath:   "a.csv",
		Records:   5,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id != "fixed-id" {
		t.Fatalf("explicit id must be kept, got %q", id)
	}
	got, err := st.GetSession(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.LogPath != "a.csv" || got.Records != 5 || !got.StartedAt.Equal(time.Unix(10, 0)) {
		t.Fatalf("unexpected session: %+v", got)
	}
	if _, err := st.GetSession(ctx, "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected sql.ErrNoRows, got %v", err)
	}
	if _, err := st.InsertSession(ctx, model.Session{ID: "fixed-id"}); err == nil {
		t.Fatalf("duplicate id must fail")
	}
}
