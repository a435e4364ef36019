package editstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/gwlsn/dvdarchive/internal/videoref"
)

func benchmarkCuts(n int) []videoref.EditCut {
	cuts := make([]videoref.EditCut, n)
	for i := range cuts {
		cuts[i] = videoref.EditCut{
			MarkInFrame:  int64(i * 1000),
			MarkOutFrame: int64(i*1000 + 500),
			ClipName:     fmt.Sprintf("clip-%d", i),
		}
	}
	return cuts
}

func BenchmarkWrite(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "bench.db")
	store, err := Open(dbPath)
	if err != nil {
		b.Fatalf("failed to open edit store: %v", err)
	}
	defer store.Close()

	cuts := benchmarkCuts(10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := fmt.Sprintf("/media/video_%d.mkv", i)
		if err := store.Write(path, "", cuts); err != nil {
			b.Fatalf("write: %v", err)
		}
	}
}

func BenchmarkWriteSamePathRepeated(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "bench.db")
	store, err := Open(dbPath)
	if err != nil {
		b.Fatalf("failed to open edit store: %v", err)
	}
	defer store.Close()

	cuts := benchmarkCuts(10)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := store.Write("/media/shared.mkv", "", cuts); err != nil {
			b.Fatalf("write: %v", err)
		}
	}
}

func BenchmarkRead(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "bench.db")
	store, err := Open(dbPath)
	if err != nil {
		b.Fatalf("failed to open edit store: %v", err)
	}
	defer store.Close()

	cuts := benchmarkCuts(10)
	for i := 0; i < 1000; i++ {
		path := fmt.Sprintf("/media/video_%d.mkv", i)
		if err := store.Write(path, "", cuts); err != nil {
			b.Fatalf("seed write: %v", err)
		}
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := fmt.Sprintf("/media/video_%d.mkv", i%1000)
		if _, err := store.Read(path, ""); err != nil {
			b.Fatalf("read: %v", err)
		}
	}
}

func BenchmarkPromote(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "bench.db")
	store, err := Open(dbPath)
	if err != nil {
		b.Fatalf("failed to open edit store: %v", err)
	}
	defer store.Close()

	globals := benchmarkCuts(5)
	override := benchmarkCuts(5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		path := fmt.Sprintf("/media/video_%d.mkv", i)
		if err := store.Write(path, "", globals); err != nil {
			b.Fatalf("seed global write: %v", err)
		}
		if err := store.Write(path, "proj", override); err != nil {
			b.Fatalf("seed project write: %v", err)
		}
		if err := store.Promote(path, "proj", true); err != nil {
			b.Fatalf("promote: %v", err)
		}
	}
}

func BenchmarkMigrateLegacyJSON1000(b *testing.B) {
	for i := 0; i < b.N; i++ {
		legacyDir := b.TempDir()
		dbPath := filepath.Join(b.TempDir(), "bench.db")

		numBlobs := 1000
		for j := 0; j < numBlobs; j++ {
			blob := legacyBlob{
				FilePath: fmt.Sprintf("/media/legacy_%d.mkv", j),
				Cuts:     benchmarkCuts(5),
			}
			data, _ := json.Marshal(blob)
			if err := os.WriteFile(filepath.Join(legacyDir, fmt.Sprintf("%d.json", j)), data, 0644); err != nil {
				b.Fatalf("write legacy blob: %v", err)
			}
		}

		store, err := Open(dbPath)
		if err != nil {
			b.Fatalf("failed to open edit store: %v", err)
		}

		if err := store.MigrateLegacyJSON(legacyDir); err != nil {
			b.Fatalf("migrate: %v", err)
		}
		store.Close()
	}
}

func BenchmarkConcurrentReads(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "bench.db")
	store, err := Open(dbPath)
	if err != nil {
		b.Fatalf("failed to open edit store: %v", err)
	}
	defer store.Close()

	cuts := benchmarkCuts(10)
	for i := 0; i < 100; i++ {
		path := fmt.Sprintf("/media/video_%d.mkv", i)
		if err := store.Write(path, "", cuts); err != nil {
			b.Fatalf("seed write: %v", err)
		}
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			path := fmt.Sprintf("/media/video_%d.mkv", i%100)
			store.Read(path, "")
			i++
		}
	})
}

func BenchmarkConcurrentWrites(b *testing.B) {
	dbPath := filepath.Join(b.TempDir(), "bench.db")
	store, err := Open(dbPath)
	if err != nil {
		b.Fatalf("failed to open edit store: %v", err)
	}
	defer store.Close()

	cuts := benchmarkCuts(10)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			path := fmt.Sprintf("/media/concurrent_%d.mkv", i)
			store.Write(path, "", cuts)
			i++
		}
	})
}
