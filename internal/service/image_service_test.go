package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"hash/crc32"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"foodgram/internal/config"
	"foodgram/internal/models"
	"foodgram/internal/testutil"
)

func newTestImageService(t *testing.T, maxMB int) (*ImageService, string) {
	t.Helper()
	root := t.TempDir()
	return NewImageService(&config.Config{MediaRoot: root, MediaURL: "/media/", ImageMaxUploadSizeMB: maxMB}), root
}

func TestImageServiceStoreWritesJPEGAndWebP(t *testing.T) {
	svc, root := newTestImageService(t, 1)

	content := testutil.TinyPNG(t, 1200, 800)
	url, err := svc.Store(context.Background(), ImageKindRecipe, ImageUpload{
		Filename:    "soup.png",
		ContentType: "image/png",
		Content:     content,
	})
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}
	if !strings.HasPrefix(url, "/media/recipes/") || !strings.HasSuffix(url, ".jpg") {
		t.Fatalf("unexpected url %q", url)
	}

	rel := strings.TrimPrefix(url, "/media/")
	jpgPath := filepath.Join(root, filepath.FromSlash(rel))
	webpPath := strings.TrimSuffix(jpgPath, ".jpg") + ".webp"
	for _, p := range []string{jpgPath, webpPath} {
		if _, statErr := os.Stat(p); statErr != nil {
			t.Fatalf("expected file at %s: %v", p, statErr)
		}
	}

	// Identical content lands on the same hash.
	again, err := svc.Store(context.Background(), ImageKindRecipe, ImageUpload{Content: content})
	if err != nil {
		t.Fatalf("second store failed: %v", err)
	}
	if again != url {
		t.Fatalf("expected %q, got %q", url, again)
	}

	svc.Remove(url)
	for _, p := range []string{jpgPath, webpPath} {
		if _, statErr := os.Stat(p); !os.IsNotExist(statErr) {
			t.Fatalf("expected %s to be removed, stat err: %v", p, statErr)
		}
	}
}

func TestImageServiceBoundsResolution(t *testing.T) {
	svc, root := newTestImageService(t, 10)

	url, err := svc.Store(context.Background(), ImageKindRecipe, ImageUpload{Content: testutil.TinyPNG(t, 2600, 1300)})
	if err != nil {
		t.Fatalf("store failed: %v", err)
	}

	f, err := os.Open(filepath.Join(root, filepath.FromSlash(strings.TrimPrefix(url, "/media/"))))
	if err != nil {
		t.Fatalf("open master: %v", err)
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		t.Fatalf("decode master: %v", err)
	}
	if cfg.Width != MasterMaxSize || cfg.Height != MasterMaxSize/2 {
		t.Fatalf("expected %dx%d, got %dx%d", MasterMaxSize, MasterMaxSize/2, cfg.Width, cfg.Height)
	}
}

func TestImageServiceStoreDataURI(t *testing.T) {
	svc, _ := newTestImageService(t, 1)
	payload := base64.StdEncoding.EncodeToString(testutil.TinyPNG(t, 16, 16))

	url, err := svc.StoreDataURI(context.Background(), ImageKindAvatar, "data:image/png;base64,"+payload)
	if err != nil {
		t.Fatalf("store data uri failed: %v", err)
	}
	if !strings.HasPrefix(url, "/media/avatars/") {
		t.Fatalf("unexpected url %q", url)
	}
}

func TestImageServiceRejectsBadInput(t *testing.T) {
	svc, _ := newTestImageService(t, 1)
	ctx := context.Background()

	tests := []struct {
		name  string
		store func() error
		field string
	}{
		{
			name:  "empty upload",
			store: func() error { _, err := svc.Store(ctx, ImageKindRecipe, ImageUpload{}); return err },
			field: "image",
		},
		{
			name: "not an image",
			store: func() error {
				_, err := svc.Store(ctx, ImageKindRecipe, ImageUpload{Content: []byte("plain text, not pixels")})
				return err
			},
			field: "image",
		},
		{
			name: "too large",
			store: func() error {
				_, err := svc.Store(ctx, ImageKindRecipe, ImageUpload{Content: make([]byte, 2*1024*1024)})
				return err
			},
			field: "image",
		},
		{
			name: "dimensions over pixel budget",
			store: func() error {
				_, err := svc.Store(ctx, ImageKindRecipe, ImageUpload{Content: grayPNGHeader(20000, 20000)})
				return err
			},
			field: "image",
		},
		{
			name: "content type mismatch",
			store: func() error {
				_, err := svc.Store(ctx, ImageKindRecipe, ImageUpload{ContentType: "image/gif", Content: testutil.TinyPNG(t, 4, 4)})
				return err
			},
			field: "image",
		},
		{
			name: "data uri without base64",
			store: func() error {
				_, err := svc.StoreDataURI(ctx, ImageKindAvatar, "data:image/png,abc")
				return err
			},
			field: "avatar",
		},
		{
			name: "not a data uri",
			store: func() error {
				_, err := svc.StoreDataURI(ctx, ImageKindAvatar, "https://example.com/a.png")
				return err
			},
			field: "avatar",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.store()
			assertValidationError(t, err)
			appErr := err.(*models.AppError)
			if _, ok := appErr.Fields[tt.field]; !ok {
				t.Fatalf("expected field %q in %v", tt.field, appErr.Fields)
			}
		})
	}
}

func TestImageServiceRemoveIgnoresForeignURLs(t *testing.T) {
	svc, root := newTestImageService(t, 1)
	outside := filepath.Join(root, "keep.jpg")
	if err := os.WriteFile(outside, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	svc.Remove("https://cdn.example.com/keep.jpg")
	svc.Remove("/media/../keep.jpg")

	if _, err := os.Stat(outside); err != nil {
		t.Fatalf("expected file to survive: %v", err)
	}
}

// grayPNGHeader returns a PNG signature plus IHDR declaring a width x height
// 8-bit grayscale image. It carries no pixel data.
func grayPNGHeader(width, height uint32) []byte {
	var ihdr bytes.Buffer
	ihdr.WriteString("IHDR")
	_ = binary.Write(&ihdr, binary.BigEndian, width)
	_ = binary.Write(&ihdr, binary.BigEndian, height)
	ihdr.Write([]byte{8, 0, 0, 0, 0})

	var out bytes.Buffer
	out.WriteString("\x89PNG\r\n\x1a\n")
	_ = binary.Write(&out, binary.BigEndian, uint32(ihdr.Len()-4))
	out.Write(ihdr.Bytes())
	_ = binary.Write(&out, binary.BigEndian, crc32.ChecksumIEEE(ihdr.Bytes()))
	return out.Bytes()
}

func TestImageServiceChecksDimensionsBeforeDecoding(t *testing.T) {
	svc, root := newTestImageService(t, 1)

	_, err := svc.Store(context.Background(), ImageKindAvatar, ImageUpload{Content: grayPNGHeader(20000, 20000)})
	assertValidationError(t, err)
	if msg := err.(*models.AppError).Fields["avatar"]; msg != "Image too large" {
		t.Fatalf("expected pixel budget rejection, got %q", msg)
	}

	entries, _ := os.ReadDir(filepath.Join(root, ImageKindAvatar))
	if len(entries) != 0 {
		t.Fatalf("expected nothing written, got %d files", len(entries))
	}
}
