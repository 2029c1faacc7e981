package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus/hooks/test"
	"gopkg.in/yaml.v3"

	"github.com/jay8860/DD-TaskDashboardClone/api"
	"github.com/jay8860/DD-TaskDashboardClone/domain"
	"github.com/jay8860/DD-TaskDashboardClone/storage"
)

var now = time.Date(2024, 6, 10, 9, 0, 0, 0, time.UTC)

type syncBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (s *syncBuffer) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Write(p)
}

func (s *syncBuffer) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.String()
}

type conflictStore struct {
	*storage.MemStore
}

func (conflictStore) UpdateTask(context.Context, string, storage.Mutator) (domain.Task, error) {
	return domain.Task{}, domain.ErrConcurrencyConflict
}

func seedTasks() []domain.Task {
	return []domain.Task{
		{ID: "a", TaskNumber: "Task 1", AssignedAgency: "Roads", AllocatedDate: "2024-06-01", TimeGiven: "10 days", DeadlineDate: "2024-06-11", ScheduledDate: "2024-06-12"},
		{ID: "b", TaskNumber: "Task 2", AssignedAgency: "Water", DeadlineDate: "2024-06-05"},
		{ID: "c", TaskNumber: "Task 3", AssignedAgency: "Roads", CompletionDate: "2024-06-02", Status: domain.StatusCompleted},
	}
}

func newServer(t *testing.T, store api.Store) string {
	t.Helper()
	logger, _ := test.NewNullLogger()
	broker := api.NewBroker()
	sender := api.NewEventSender(broker, api.SenderConfig{Workers: 1, Buffer: 8, Timeout: time.Second}, logger)
	t.Cleanup(sender.Close)
	svc := api.NewService(store, sender, logger, api.WithServiceClock(func() time.Time { return now }))

	e := echo.New()
	e.JSONSerializer = api.SonicSerializer{}
	api.Register(e, svc, api.StaticAuth("user"), api.Options{Broker: broker, Heartbeat: time.Hour, Location: time.UTC}, logger)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv.URL
}

type harness struct {
	url   string
	store *storage.MemStore
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	store := storage.NewMemStore(seedTasks()...)
	return &harness{url: newServer(t, store), store: store}
}

func (h *harness) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return runCLI(context.Background(), append(args, "--endpoint", h.url)...)
}

func runCLI(ctx context.Context, args ...string) (int, string, string) {
	var out, errOut bytes.Buffer
	code := New(WithOutput(&out, &errOut), WithClock(func() time.Time { return now })).Execute(ctx, args)
	return code, out.String(), errOut.String()
}

func (h *harness) task(t *testing.T, id string) domain.Task {
	t.Helper()
	task, err := h.store.GetTask(context.Background(), id)
	if err != nil {
		t.Fatalf("get %s: %v", id, err)
	}
	return task
}

func TestListTable(t *testing.T) {
	h := newHarness(t)
	code, out, errOut := h.run(t, "list")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	for _, want := range []string{"NUMBER", "Task 1", "Tomorrow !", "Overdue", "Completed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestListJSONFiltered(t *testing.T) {
	h := newHarness(t)
	code, out, errOut := h.run(t, "list", "-o", "json", "--agency", "Roads", "--sort", "task_number")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var views []api.TaskView
	if err := sonic.UnmarshalString(out, &views); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(views) != 2 || views[0].ID != "a" || views[1].ID != "c" {
		t.Fatalf("unexpected views %+v", views)
	}
}

func TestListRejectsBadSort(t *testing.T) {
	h := newHarness(t)
	if code, _, _ := h.run(t, "list", "--sort", "nope"); code != ExitError {
		t.Fatalf("expected failure, got %d", code)
	}
}

func TestBoardTable(t *testing.T) {
	h := newHarness(t)
	code, out, errOut := h.run(t, "board")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	for _, want := range []string{"Mon 2024-06-10", "Tue 2024-06-11", "[deadline]", "a-dead", "[scheduled]", "a-sched", "Sun 2024-06-16"} {
		if !strings.Contains(out, want) {
			t.Fatalf("board missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "b-dead") {
		t.Fatalf("last week's deadline should not be shown:\n%s", out)
	}
}

func TestBoardViewAndWeek(t *testing.T) {
	h := newHarness(t)
	code, out, errOut := h.run(t, "board", "--view", "deadline", "--week", "2024-06-06")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.Contains(out, "Mon 2024-06-03") || !strings.Contains(out, "b-dead") || strings.Contains(out, "sched") {
		t.Fatalf("unexpected board:\n%s", out)
	}
}

func TestMoveDeadlineKeepsTimeGivenInStep(t *testing.T) {
	h := newHarness(t)
	code, out, errOut := h.run(t, "move", "a", "deadline", "2024-06-14")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if !strings.HasPrefix(out, "moved:") {
		t.Fatalf("unexpected output %q", out)
	}
	got := h.task(t, "a")
	if got.DeadlineDate != "2024-06-14" || got.TimeGiven != "13 days" || got.ScheduledDate != "2024-06-12" {
		t.Fatalf("unexpected task %+v", got)
	}
}

func TestMoveAcrossWeeks(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run(t, "move", "b", "dead", "2024-06-20")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if got := h.task(t, "b"); got.DeadlineDate != "2024-06-20" {
		t.Fatalf("unexpected task %+v", got)
	}
}

func TestMoveSameDayIsUnchanged(t *testing.T) {
	h := newHarness(t)
	code, out, _ := h.run(t, "move", "a", "scheduled", "2024-06-12")
	if code != ExitSuccess || !strings.HasPrefix(out, "unchanged:") {
		t.Fatalf("exit %d output %q", code, out)
	}
}

func TestMoveErrors(t *testing.T) {
	h := newHarness(t)
	for name, args := range map[string][]string{
		"unknown task":    {"move", "zzz", "deadline", "2024-06-14"},
		"bad kind":        {"move", "a", "someday", "2024-06-14"},
		"bad date":        {"move", "a", "deadline", "soon"},
		"no date to move": {"move", "b", "scheduled", "2024-06-14"},
		"closed task":     {"move", "c", "deadline", "2024-06-14"},
	} {
		t.Run(name, func(t *testing.T) {
			if code, _, _ := h.run(t, args...); code != ExitError {
				t.Fatalf("expected failure, got %d", code)
			}
		})
	}
}

func TestMoveRejectedByServer(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	url := newServer(t, conflictStore{storage.NewMemStore(seedTasks()...)})
	code, _, errOut := runCLI(context.Background(), "move", "a", "deadline", "2024-06-14", "--endpoint", url)
	if code != ExitRolledBack {
		t.Fatalf("expected rollback exit, got %d: %s", code, errOut)
	}
	if !strings.Contains(errOut, "reloading tasks") {
		t.Fatalf("expected rollback warning, got %q", errOut)
	}
}

func TestSchedule(t *testing.T) {
	h := newHarness(t)
	code, _, errOut := h.run(t, "schedule", "b", "2024-06-13", "10:30")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if got := h.task(t, "b"); got.ScheduledDate != "2024-06-13" || got.ScheduledTime != "10:30" {
		t.Fatalf("unexpected task %+v", got)
	}

	if code, _, errOut = h.run(t, "schedule", "b", "--clear"); code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if got := h.task(t, "b"); got.ScheduledDate != "" || got.ScheduledTime != "" {
		t.Fatalf("expected cleared schedule, got %+v", got)
	}

	if code, _, _ := h.run(t, "schedule", "b"); code != ExitError {
		t.Fatalf("expected missing date to fail, got %d", code)
	}
	if code, _, _ := h.run(t, "schedule", "b", "2024-06-13", "25:99"); code != ExitError {
		t.Fatalf("expected bad time to fail, got %d", code)
	}
}

func TestReschedule(t *testing.T) {
	h := newHarness(t)
	if code, _, _ := h.run(t, "reschedule", "a"); code != ExitError {
		t.Fatalf("expected a mode to be required, got %d", code)
	}
	if code, _, _ := h.run(t, "reschedule", "a", "--extend", "1", "--from-today", "1"); code != ExitError {
		t.Fatalf("expected modes to be exclusive, got %d", code)
	}

	code, out, errOut := h.run(t, "reschedule", "a", "b", "--extend", "2")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	if out != "rescheduled 2 of 2 tasks\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if got := h.task(t, "a"); got.DeadlineDate != "2024-06-13" || got.TimeGiven != "12 days" {
		t.Fatalf("unexpected task %+v", got)
	}
}

func TestStatsYAML(t *testing.T) {
	h := newHarness(t)
	code, out, errOut := h.run(t, "stats", "-o", "yaml")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var got struct {
		Total     int `yaml:"total"`
		Completed int `yaml:"completed"`
		Overdue   int `yaml:"overdue"`
		ByAgency  map[string]struct {
			Total int `yaml:"total"`
		} `yaml:"by_agency"`
	}
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if got.Total != 3 || got.Completed != 1 || got.Overdue != 1 || got.ByAgency["Roads"].Total != 2 {
		t.Fatalf("unexpected stats %+v", got)
	}
	if strings.Contains(out, "{") {
		t.Fatalf("expected block style yaml:\n%s", out)
	}
}

func TestStatsTable(t *testing.T) {
	h := newHarness(t)
	_, out, _ := h.run(t, "stats")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 4 || !strings.HasPrefix(lines[1], "Roads") || !strings.HasPrefix(lines[3], "ALL") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func TestConfigPrecedence(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	path := filepath.Join(home, ".config", "planner", "config.yaml")
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatal(err)
	}
	file := "endpoint: http://from-file\ntoken: secret\nview: deadline\noutput: table\ninterval: 30s\n"
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PLANNER_OUTPUT", "json")

	code, out, errOut := runCLI(context.Background(), "config", "show", "--endpoint", "http://from-flag")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	var got map[string]string
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := map[string]string{
		"endpoint": "http://from-flag",
		"token":    "****",
		"view":     "deadline",
		"output":   "json",
		"interval": "30s",
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("%s: got %q want %q (%s)", k, got[k], v, out)
		}
	}
}

func TestConfigInit(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "planner.yaml")

	code, _, errOut := runCLI(context.Background(), "config", "init", "--config", path, "--view", "scheduled")
	if code != ExitSuccess {
		t.Fatalf("exit %d: %s", code, errOut)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "view: scheduled") || !strings.Contains(string(data), "interval: 10s") {
		t.Fatalf("unexpected file:\n%s", data)
	}

	if code, _, _ := runCLI(context.Background(), "config", "init", "--config", path); code != ExitError {
		t.Fatalf("expected refusal to overwrite, got %d", code)
	}
	if code, _, _ := runCLI(context.Background(), "config", "init", "--config", path, "--force"); code != ExitSuccess {
		t.Fatalf("expected overwrite with --force, got %d", code)
	}
}

func TestInvalidConfigValues(t *testing.T) {
	h := newHarness(t)
	for _, args := range [][]string{
		{"board", "--view", "month"},
		{"board", "-o", "xml"},
		{"board", "--week", "someday"},
	} {
		if code, _, _ := h.run(t, args...); code != ExitError {
			t.Fatalf("%v: expected failure, got %d", args, code)
		}
	}
}

func TestWatchRedrawsOnChange(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, errOut := &syncBuffer{}, &syncBuffer{}
	done := make(chan int, 1)
	go func() {
		cli := New(WithOutput(out, errOut), WithClock(func() time.Time { return now }))
		done <- cli.Execute(ctx, []string{"watch", "--endpoint", h.url, "--interval", "20ms"})
	}()

	waitFor := func(cond func() bool) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for !cond() {
			if time.Now().After(deadline) {
				t.Fatalf("timed out; output:\n%s\nlogs:\n%s", out.String(), errOut.String())
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
	waitFor(func() bool { return strings.Count(out.String(), "week of 2024-06-10") == 1 })

	// an unchanged board is not printed again
	time.Sleep(100 * time.Millisecond)
	if n := strings.Count(out.String(), "week of"); n != 1 {
		t.Fatalf("expected a single render, got %d", n)
	}

	if _, err := h.store.UpdateTask(context.Background(), "b", func(cur domain.Task) (domain.Task, error) {
		cur.DeadlineDate = "2024-06-15"
		return cur, nil
	}); err != nil {
		t.Fatal(err)
	}
	waitFor(func() bool { return strings.Contains(out.String(), "b-dead") })

	cancel()
	select {
	case code := <-done:
		if code != ExitSuccess {
			t.Fatalf("exit %d: %s", code, errOut.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
