package db

import (
	"context"
	"encoding/json"
	"testing"
)

func TestDrawingCRUD(t *testing.T) {
	ctx := context.Background()
	database := newTestDB(t)

	d := Drawing{
		ID:       4,
		Elements: json.RawMessage(`[{"id":"e1","type":"ellipse"}]`),
		AppState: json.RawMessage(`{"viewBackgroundColor":"#fff"}`),
		Files:    map[string]json.RawMessage{"f1": json.RawMessage(`{"mimeType":"image/png"}`)},
	}
	if err := database.SaveDrawing(ctx, d); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := database.LoadDrawing(ctx, 4)
	if err != nil || got == nil {
		t.Fatalf("load: %v", err)
	}
	if string(got.Elements) != string(d.Elements) || string(got.AppState) != string(d.AppState) {
		t.Fatalf("drawing documents changed: %+v", got)
	}
	if string(got.Files["f1"]) != `{"mimeType":"image/png"}` {
		t.Fatalf("files changed: %+v", got.Files)
	}

	d.Elements = json.RawMessage(`[]`)
	if err := database.SaveDrawing(ctx, d); err != nil {
		t.Fatal(err)
	}
	got, _ = database.LoadDrawing(ctx, 4)
	if string(got.Elements) != `[]` {
		t.Fatalf("expected overwrite, got %s", got.Elements)
	}

	if err := database.DeleteDrawing(ctx, 4); err != nil {
		t.Fatal(err)
	}
	if got, _ := database.LoadDrawing(ctx, 4); got != nil {
		t.Fatalf("expected nil after delete")
	}
}

func TestLoadDrawingMissing(t *testing.T) {
	database := newTestDB(t)
	d, err := database.LoadDrawing(context.Background(), 99)
	if err != nil || d != nil {
		t.Fatalf("expected nil, nil for missing drawing, got %+v, %v", d, err)
	}
}
