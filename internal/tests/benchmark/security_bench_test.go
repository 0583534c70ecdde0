package benchmark

import (
	"context"
	"crypto/rand"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/yndnr/jsonkeep-go/internal/core/domain"
	"github.com/yndnr/jsonkeep-go/internal/core/service"
	"github.com/yndnr/jsonkeep-go/internal/storage/keyring"
	"github.com/yndnr/jsonkeep-go/pkg/token"
)

// Security benchmark tests for key handling and hashing.

// BenchmarkTokenHash benchmarks SHA-256 token hashing for timing analysis.
func BenchmarkTokenHash(b *testing.B) {
	tokens := make([]string, 1000)
	for i := 0; i < len(tokens); i++ {
		tokens[i], _ = token.Generate()
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		token.Hash(tokens[i%len(tokens)])
	}
}

// BenchmarkTokenHashTimingConsistency checks for timing consistency.
func BenchmarkTokenHashTimingConsistency(b *testing.B) {
	shortToken, _ := token.Generate()
	longToken, _ := token.GenerateWithLength(64)

	b.Run("standard_length", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			token.Hash(shortToken)
		}
	})

	b.Run("double_length", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			token.Hash(longToken)
		}
	})
}

// BenchmarkTokenGenerate benchmarks secure token generation.
func BenchmarkTokenGenerate(b *testing.B) {
	lengths := []int{16, 32, 48, 64}

	for _, length := range lengths {
		b.Run(sizeLabel(length), func(b *testing.B) {
			b.ReportAllocs()

			for i := 0; i < b.N; i++ {
				if _, err := token.GenerateWithLength(length); err != nil {
					b.Fatalf("GenerateWithLength failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkTokenGenerateParallel benchmarks parallel token generation.
func BenchmarkTokenGenerateParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := token.Generate(); err != nil {
				b.Fatalf("Generate failed: %v", err)
			}
		}
	})
}

// BenchmarkRandomGeneration benchmarks cryptographic random generation.
func BenchmarkRandomGeneration(b *testing.B) {
	sizes := []int{16, 32, 64, 128, 256}

	for _, size := range sizes {
		b.Run(sizeLabel(size), func(b *testing.B) {
			buf := make([]byte, size)

			b.ResetTimer()
			b.ReportAllocs()
			b.SetBytes(int64(size))

			for i := 0; i < b.N; i++ {
				if _, err := rand.Read(buf); err != nil {
					b.Fatalf("rand.Read failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkNewAPIKey benchmarks API key creation. The argon2id secret hash
// dominates, so this tracks the cost of the configured hash parameters.
func BenchmarkNewAPIKey(b *testing.B) {
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if _, _, err := domain.NewAPIKey("bench", domain.RoleReader); err != nil {
			b.Fatalf("NewAPIKey failed: %v", err)
		}
	}
}

// BenchmarkValidateAPIKey benchmarks validation against a file-backed
// keyring. Both paths pay the argon2id verify; the cache only saves the
// repository round trip.
func BenchmarkValidateAPIKey(b *testing.B) {
	ctx := context.Background()

	ring, err := keyring.Open(filepath.Join(b.TempDir(), "keys.json"))
	if err != nil {
		b.Fatalf("open keyring: %v", err)
	}
	defer ring.Close()

	authSvc := service.NewAuthService(ring, nil)
	created, err := authSvc.CreateAPIKey(ctx, &service.CreateAPIKeyRequest{
		Name: "bench",
		Role: string(domain.RoleReader),
	})
	if err != nil {
		b.Fatalf("create API key: %v", err)
	}

	req := &service.ValidateAPIKeyRequest{
		KeyID:     created.KeyID,
		KeySecret: created.Secret,
		ClientIP:  "127.0.0.1",
	}

	b.Run("cache_hit", func(b *testing.B) {
		if _, err := authSvc.ValidateAPIKey(ctx, req); err != nil {
			b.Fatalf("warm validate: %v", err)
		}

		b.ResetTimer()
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			resp, err := authSvc.ValidateAPIKey(ctx, req)
			if err != nil {
				b.Fatalf("validate: %v", err)
			}
			if !resp.Valid {
				b.Fatal("key not valid")
			}
		}
	})

	b.Run("cache_miss", func(b *testing.B) {
		b.ReportAllocs()

		for i := 0; i < b.N; i++ {
			authSvc.InvalidateCache(created.KeyID)
			resp, err := authSvc.ValidateAPIKey(ctx, req)
			if err != nil {
				b.Fatalf("validate: %v", err)
			}
			if !resp.Valid {
				b.Fatal("key not valid")
			}
		}
	})
}

// sizeLabel returns a human-readable size label.
func sizeLabel(size int) string {
	switch {
	case size >= 1024*1024:
		return fmt.Sprintf("%dMB", size/(1024*1024))
	case size >= 1024:
		return fmt.Sprintf("%dKB", size/1024)
	default:
		return fmt.Sprintf("%dB", size)
	}
}
