package db

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestTaskToggle(t *testing.T) {
	inbox := Task{ID: 1, List: ListInbox}
	inbox.Toggle()
	if !inbox.Completed || inbox.List != ListArchive {
		t.Fatalf("completing inbox task should archive it: %+v", inbox)
	}

	project := Task{ID: 2, List: "garden"}
	project.Toggle()
	if project.List != ListArchive {
		t.Fatalf("completing project task should archive it: %+v", project)
	}

	archived := Task{ID: 3, List: ListArchive, Completed: true}
	archived.Toggle()
	if archived.Completed || archived.List != ListArchive {
		t.Fatalf("archive tasks toggle in place: %+v", archived)
	}
}

func TestNewTaskIDIsTimestamp(t *testing.T) {
	now := time.UnixMilli(1_700_000_123_456)
	if NewTaskID(now) != 1_700_000_123_456 {
		t.Fatalf("unexpected id %d", NewTaskID(now))
	}
}

func TestLoadAllTodoDataPartitions(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	tasks := []Task{
		{ID: 1, Text: "milk", List: ListInbox, URLs: []string{"https://shop.example"}},
		{ID: 2, Text: "done", List: ListArchive, Completed: true},
		{ID: 3, Text: "plant", List: "garden", DueDate: "2026-05-01", Notes: "tomatoes"},
		{ID: 4, Text: "no list"},
	}
	if err := database.SaveTasks(ctx, tasks); err != nil {
		t.Fatal(err)
	}
	if err := database.SaveProjects(ctx, []string{"work", "garden"}); err != nil {
		t.Fatal(err)
	}

	data, err := database.LoadAllTodoData(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(data.Inbox) != 2 || len(data.Archive) != 1 {
		t.Fatalf("unexpected partition inbox=%d archive=%d", len(data.Inbox), len(data.Archive))
	}
	if data.Inbox[0].URLs[0] != "https://shop.example" {
		t.Fatalf("urls not round-tripped: %+v", data.Inbox[0])
	}
	garden := data.Projects["garden"]
	if len(garden) != 1 || garden[0].DueDate != "2026-05-01" || garden[0].Notes != "tomatoes" {
		t.Fatalf("unexpected garden tasks %+v", garden)
	}
	if work, ok := data.Projects["work"]; !ok || len(work) != 0 {
		t.Fatalf("expected empty work project from metadata, got %+v", work)
	}
	if len(data.ProjectNames) != 2 || data.ProjectNames[0] != "work" {
		t.Fatalf("unexpected project names %v", data.ProjectNames)
	}
}

func TestSaveTaskUpsertAndDelete(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	task := Task{ID: 10, Text: "call", List: ListInbox}
	if err := database.SaveTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	task.Toggle()
	if err := database.SaveTask(ctx, task); err != nil {
		t.Fatal(err)
	}
	data, _ := database.LoadAllTodoData(ctx)
	if len(data.Inbox) != 0 || len(data.Archive) != 1 || !data.Archive[0].Completed {
		t.Fatalf("expected task moved to archive, got %+v", data)
	}

	if err := database.DeleteTask(ctx, 10); err != nil {
		t.Fatal(err)
	}
	data, _ = database.LoadAllTodoData(ctx)
	if len(data.Archive) != 0 {
		t.Fatalf("expected task deleted")
	}
}

func TestLegacyTodoBlobIsFannedOut(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	legacy := legacyTodoData{
		Inbox:   []Task{{ID: 1, Text: "a"}},
		Archive: []Task{{ID: 2, Text: "b", Completed: true}},
		Projects: map[string][]Task{
			"home": {{ID: 3, Text: "c"}, {ID: 4, Text: "d"}},
		},
	}
	raw, _ := json.Marshal(legacy)
	if _, err := database.conn.Exec(`INSERT INTO todo_meta (key, value) VALUES ('todoData', ?)`, string(raw)); err != nil {
		t.Fatal(err)
	}

	data, err := database.LoadAllTodoData(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(data.Inbox) != 1 || len(data.Archive) != 1 || len(data.Projects["home"]) != 2 {
		t.Fatalf("legacy data not fanned out: %+v", data)
	}
	if data.Projects["home"][0].List != "home" {
		t.Fatalf("project tasks must carry their list, got %q", data.Projects["home"][0].List)
	}
	if len(data.ProjectNames) != 1 || data.ProjectNames[0] != "home" {
		t.Fatalf("expected project metadata to include home, got %v", data.ProjectNames)
	}

	var n int
	if err := database.conn.QueryRow(`SELECT COUNT(*) FROM todo_meta WHERE key = 'todoData'`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("legacy record should be deleted after migration")
	}

	// Second load must not duplicate anything.
	again, _ := database.LoadAllTodoData(ctx)
	if len(again.Projects["home"]) != 2 {
		t.Fatalf("expected stable data on second load, got %+v", again.Projects)
	}
}

func TestLoadAllTodoDataRejectsCorruptURLs(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	if err := database.SaveTask(ctx, Task{ID: 5, Text: "read", List: ListInbox}); err != nil {
		t.Fatal(err)
	}
	if _, err := database.conn.ExecContext(ctx, `UPDATE todos SET urls = ? WHERE id = ?`, "{not json", 5); err != nil {
		t.Fatal(err)
	}
	if _, err := database.LoadAllTodoData(ctx); err == nil {
		t.Fatal("expected an error for undecodable urls")
	}
}
