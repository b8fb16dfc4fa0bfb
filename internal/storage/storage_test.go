package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestDataProductPath(t *testing.T) {
	tests := []struct {
		target, facility, filename string
		want                       string
	}{
		{"M42", "LCO", "img.fits", "M42/LCO/img.fits"},
		{"M42", "", "img.fits", "M42/none/img.fits"},
		{"M42", "LCO", "../../etc/passwd", "M42/LCO/passwd"},
		{"M42", "LCO", `C:\data\img.fits`, "M42/LCO/img.fits"},
	}
	for _, tt := range tests {
		if got := DataProductPath(tt.target, tt.facility, tt.filename); got != tt.want {
			t.Errorf("DataProductPath(%q, %q, %q) = %q, want %q", tt.target, tt.facility, tt.filename, got, tt.want)
		}
	}
}

func TestLocalStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := DataProductPath("M42", "LCO", "img.fits")
	if err := store.Save(ctx, key, strings.NewReader("SIMPLE"), 6); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "SIMPLE" {
		t.Errorf("content = %q", data)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, ErrNotExist) {
		t.Errorf("Open() after delete error = %v, want ErrNotExist", err)
	}
	if err := store.Delete(ctx, key); !errors.Is(err, ErrNotExist) {
		t.Errorf("second Delete() error = %v, want ErrNotExist", err)
	}
}

func TestLocalStoreRejectsEscapingKeys(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"../outside.fits", "a/../../outside.fits", ""} {
		if err := store.Save(context.Background(), key, strings.NewReader("x"), 1); err == nil {
			t.Errorf("Save(%q) should fail", key)
		}
	}
}

func TestAvailableKey(t *testing.T) {
	ctx := context.Background()
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	key := DataProductPath("M42", "", "img.fits")
	got, err := AvailableKey(ctx, store, key)
	if err != nil || got != key {
		t.Fatalf("AvailableKey() on free key = %q, %v", got, err)
	}

	if err := store.Save(ctx, key, strings.NewReader("AAAA"), 4); err != nil {
		t.Fatal(err)
	}
	got, err = AvailableKey(ctx, store, key)
	if err != nil {
		t.Fatalf("AvailableKey() error = %v", err)
	}
	if got == key || !strings.HasPrefix(got, "M42/none/img_") || !strings.HasSuffix(got, ".fits") {
		t.Errorf("AvailableKey() = %q, want a suffixed name", got)
	}
	if len(got) != len(key)+8 {
		t.Errorf("AvailableKey() = %q, want a 7 character suffix", got)
	}
	if exists, err := store.Exists(ctx, got); err != nil || exists {
		t.Errorf("Exists(%q) = %v, %v", got, exists, err)
	}
}
