package blob

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
)

func drivers(t *testing.T) map[string]Store {
	t.Helper()
	fsStore, err := NewFilesystem(filepath.Join(t.TempDir(), "blobs"))
	if err != nil {
		t.Fatalf("NewFilesystem: %v", err)
	}
	return map[string]Store{
		"fs":     fsStore,
		"memory": NewMemory(),
		"s3":     NewMockS3ForTests(),
	}
}

func TestStoreContract(t *testing.T) {
	ctx := context.Background()
	for name, store := range drivers(t) {
		t.Run(name, func(t *testing.T) {
			info, err := store.Put(ctx, "exports/a/1.csv", strings.NewReader("subject\n1\n"), PutOptions{
				ContentType: "text/csv",
				Metadata:    map[string]string{"template": "transitions"},
			})
			if err != nil {
				t.Fatalf("Put: %v", err)
			}
			if info.Key != "exports/a/1.csv" || info.Size != 10 {
				t.Fatalf("unexpected put info %+v", info)
			}
			if _, err := store.Put(ctx, "exports/a/1.csv", strings.NewReader("x"), PutOptions{}); !errors.Is(err, ErrExists) {
				t.Fatalf("expected ErrExists, got %v", err)
			}
			if _, err := store.Put(ctx, "exports/b/2.json", strings.NewReader("[]"), PutOptions{ContentType: "application/json"}); err != nil {
				t.Fatalf("Put second: %v", err)
			}

			head, err := store.Head(ctx, "exports/a/1.csv")
			if err != nil {
				t.Fatalf("Head: %v", err)
			}
			if head.ContentType != "text/csv" || head.Metadata["template"] != "transitions" {
				t.Fatalf("unexpected head %+v", head)
			}

			got, rc, err := store.Get(ctx, "exports/a/1.csv")
			if err != nil {
				t.Fatalf("Get: %v", err)
			}
			body, _ := io.ReadAll(rc)
			_ = rc.Close()
			if string(body) != "subject\n1\n" || got.Size != int64(len(body)) {
				t.Fatalf("unexpected body %q size %d", body, got.Size)
			}

			list, err := store.List(ctx, "exports/")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(list) != 2 || list[0].Key != "exports/a/1.csv" || list[1].Key != "exports/b/2.json" {
				t.Fatalf("unexpected list %+v", list)
			}
			if only, _ := store.List(ctx, "exports/b"); len(only) != 1 {
				t.Fatalf("expected prefix filter, got %+v", only)
			}

			if _, _, err := store.Get(ctx, "exports/none"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound from Get, got %v", err)
			}
			if _, err := store.Head(ctx, "exports/none"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound from Head, got %v", err)
			}

			deleted, err := store.Delete(ctx, "exports/a/1.csv")
			if err != nil || !deleted {
				t.Fatalf("Delete: %v %v", deleted, err)
			}
			if deleted, _ := store.Delete(ctx, "exports/a/1.csv"); deleted {
				t.Fatalf("expected second delete to report absent")
			}
			if _, err := store.Put(ctx, "../escape", strings.NewReader("x"), PutOptions{}); !errors.Is(err, ErrInvalidKey) {
				t.Fatalf("expected ErrInvalidKey, got %v", err)
			}
		})
	}
}

func TestPresignURL(t *testing.T) {
	ctx := context.Background()
	stores := drivers(t)
	if _, err := stores["memory"].PresignURL(ctx, "k", SignedURLOptions{}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected memory presign unsupported, got %v", err)
	}
	u, err := stores["fs"].PresignURL(ctx, "exports/x.csv", SignedURLOptions{})
	if err != nil || !strings.HasPrefix(u, "file://") || !strings.HasSuffix(u, "exports/x.csv") {
		t.Fatalf("unexpected fs url %q %v", u, err)
	}
	if _, err := stores["fs"].PresignURL(ctx, "k", SignedURLOptions{Method: "PUT"}); !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected fs PUT unsupported, got %v", err)
	}
	u, err = stores["s3"].PresignURL(ctx, "exports/x.csv", SignedURLOptions{})
	if err != nil || !strings.Contains(u, "X-Amz-Signature") || !strings.Contains(u, "mock-bucket/exports/x.csv") {
		t.Fatalf("unexpected s3 url %q %v", u, err)
	}
}

func TestNewSelectsDriver(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name    string
		cfg     Config
		driver  Driver
		wantErr string
	}{
		{"default fs", Config{FSRoot: t.TempDir()}, DriverFilesystem, ""},
		{"memory", Config{Driver: DriverMemory}, DriverMemory, ""},
		{"s3 without bucket", Config{Driver: DriverS3}, "", EnvS3Bucket},
		{"s3", Config{Driver: DriverS3, S3: S3Config{Bucket: "b", Endpoint: "http://localhost:9000", PathStyle: true, AccessKeyID: "a", SecretAccessKey: "s"}}, DriverS3, ""},
		{"unknown", Config{Driver: "gcs"}, "", "unknown blob driver"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := New(ctx, tc.cfg)
			if tc.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
					t.Fatalf("expected error containing %q, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("New: %v", err)
			}
			if store.Driver() != tc.driver {
				t.Fatalf("expected %s, got %s", tc.driver, store.Driver())
			}
		})
	}
}

func TestOpenFromEnv(t *testing.T) {
	root := filepath.Join(t.TempDir(), "env")
	t.Setenv(EnvDriver, "FS")
	t.Setenv(EnvFSRoot, root)
	t.Setenv(EnvS3PathStyle, "TRUE")
	cfg := ConfigFromEnv()
	if cfg.Driver != DriverFilesystem || cfg.FSRoot != root || !cfg.S3.PathStyle {
		t.Fatalf("unexpected config %+v", cfg)
	}
	store, err := Open(context.Background())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if store.Driver() != DriverFilesystem {
		t.Fatalf("unexpected driver %s", store.Driver())
	}
}
