package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestFSStoreSaveAndDelete(t *testing.T) {
	root := t.TempDir()
	s := NewFSStore(root, "/media")

	objectPath := RecipeImagePath("dinner.JPG")

	if !strings.HasPrefix(objectPath, "uploads/recipe/") {
		t.Fatalf("unexpected object path %q", objectPath)
	}
	if !strings.HasSuffix(objectPath, ".jpg") {
		t.Fatalf("extension not kept lowercased: %q", objectPath)
	}

	body := strings.NewReader("not really a jpeg")
	if err := s.Save(context.Background(), objectPath, body, int64(body.Len()), "image/jpeg"); err != nil {
		t.Fatalf("Save: %v", err)
	}

	onDisk := filepath.Join(root, filepath.FromSlash(objectPath))
	data, err := os.ReadFile(onDisk)
	if err != nil {
		t.Fatalf("reading saved file: %v", err)
	}
	if string(data) != "not really a jpeg" {
		t.Fatalf("saved %q", data)
	}

	if got := s.URL(objectPath); got != "/media/"+objectPath {
		t.Fatalf("URL = %q", got)
	}

	if err := s.Delete(context.Background(), objectPath); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := os.Stat(onDisk); !os.IsNotExist(err) {
		t.Fatalf("file still on disk after delete: %v", err)
	}

	// deleting a missing object is not an error
	if err := s.Delete(context.Background(), objectPath); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
}

func TestRecipeImagePathIsUniquePerUpload(t *testing.T) {
	a := RecipeImagePath("photo.png")
	b := RecipeImagePath("photo.png")

	if a == b {
		t.Fatal("two uploads of the same filename must not collide")
	}
}
