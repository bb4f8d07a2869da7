package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeGroups struct {
	jids []string
	err  error
}

func (f *fakeGroups) GetGroupsWithMessagesOnDate(_, _ int64) ([]string, error) {
	return f.jids, f.err
}

type fakeRunner struct {
	mu    sync.Mutex
	calls []string // "jid/date"
	fail  map[string]bool
}

func (f *fakeRunner) GenerateAndStore(_ context.Context, groupJID, date string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, groupJID+"/"+date)
	if f.fail[groupJID] {
		return "", errors.New("backend down")
	}
	return "resumo", nil
}

func TestEvaluate(t *testing.T) {
	loc := time.UTC
	at := func(h, m int) time.Time {
		return time.Date(2026, 8, 30, h, m, 0, 0, loc)
	}

	cases := []struct {
		name        string
		now         time.Time
		trigger     string
		lastRunDate string
		wantDate    string
		wantFire    bool
	}{
		{"fires at trigger minute", at(3, 0), "03:00", "", "2026-08-29", true},
		{"off minute", at(3, 1), "03:00", "", "", false},
		{"wrong hour", at(4, 0), "03:00", "", "", false},
		{"date already handled", at(3, 0), "03:00", "2026-08-29", "", false},
		{"next day fires again", time.Date(2026, 8, 31, 3, 0, 0, 0, loc), "03:00", "2026-08-29", "2026-08-30", true},
		{"seconds do not matter", at(3, 0).Add(42 * time.Second), "03:00", "", "2026-08-29", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			date, fire := Evaluate(tc.now, tc.trigger, tc.lastRunDate)
			if fire != tc.wantFire || date != tc.wantDate {
				t.Errorf("Evaluate = (%q, %v), want (%q, %v)", date, fire, tc.wantDate, tc.wantFire)
			}
		})
	}
}

func TestEvaluate_TimezoneBoundary(t *testing.T) {
	// 03:00 in UTC-3 is 06:00 UTC; yesterday is the local calendar yesterday.
	loc := time.FixedZone("UTC-3", -3*60*60)
	nowLocal := time.Date(2026, 9, 1, 3, 0, 0, 0, loc)

	date, fire := Evaluate(nowLocal, "03:00", "")
	if !fire || date != "2026-08-31" {
		t.Errorf("Evaluate = (%q, %v), want (2026-08-31, true)", date, fire)
	}
}

func TestTick_FiresOncePerDay(t *testing.T) {
	groups := &fakeGroups{jids: []string{"a@g.us"}}
	runner := &fakeRunner{}
	s := New(DefaultConfig(), time.UTC, groups, runner, nil)

	now := time.Date(2026, 8, 30, 3, 0, 10, 0, time.UTC)
	s.now = func() time.Time { return now }

	// Two ticks inside the same trigger minute: one run.
	s.Tick(context.Background())
	now = now.Add(20 * time.Second)
	s.Tick(context.Background())

	if len(runner.calls) != 1 {
		t.Fatalf("expected 1 run, got %d (%v)", len(runner.calls), runner.calls)
	}
	if runner.calls[0] != "a@g.us/2026-08-29" {
		t.Errorf("expected yesterday's date, got %s", runner.calls[0])
	}

	// Next day, same minute: fires again for the new yesterday.
	now = now.Add(24 * time.Hour)
	s.Tick(context.Background())
	if len(runner.calls) != 2 {
		t.Fatalf("expected 2 runs after next day, got %d", len(runner.calls))
	}
	if runner.calls[1] != "a@g.us/2026-08-30" {
		t.Errorf("expected next date, got %s", runner.calls[1])
	}
}

func TestTick_OffMinuteDoesNothing(t *testing.T) {
	runner := &fakeRunner{}
	s := New(DefaultConfig(), time.UTC, &fakeGroups{jids: []string{"a@g.us"}}, runner, nil)
	s.now = func() time.Time { return time.Date(2026, 8, 30, 12, 34, 0, 0, time.UTC) }

	s.Tick(context.Background())

	if len(runner.calls) != 0 {
		t.Errorf("expected no runs, got %v", runner.calls)
	}
}

func TestRunDaily_GroupFailureIsolated(t *testing.T) {
	groups := &fakeGroups{jids: []string{"a@g.us", "b@g.us", "c@g.us"}}
	runner := &fakeRunner{fail: map[string]bool{"b@g.us": true}}
	s := New(DefaultConfig(), time.UTC, groups, runner, nil)

	s.runDaily(context.Background(), "2026-08-29")

	// The failing group must not stop the others.
	if len(runner.calls) != 3 {
		t.Fatalf("expected all 3 groups attempted, got %d (%v)", len(runner.calls), runner.calls)
	}
}

func TestStartStop(t *testing.T) {
	s := New(Config{Enabled: true, TriggerTime: "03:00"}, time.UTC, &fakeGroups{}, &fakeRunner{}, nil)

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx) // idempotent
	s.Stop()
	s.Stop() // idempotent
}

func TestStart_Disabled(t *testing.T) {
	s := New(Config{Enabled: false}, time.UTC, &fakeGroups{}, &fakeRunner{}, nil)
	s.Start(context.Background())
	if s.cron != nil {
		t.Error("expected no cron when disabled")
	}
	s.Stop()
}
