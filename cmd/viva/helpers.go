package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/keshav2232/viva/internal/config"
	"github.com/keshav2232/viva/internal/viva/archive"
	"github.com/keshav2232/viva/internal/viva/domain"
	"github.com/keshav2232/viva/internal/viva/storage"
)

// exitOnError prints err to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		exitOnError(err)
	}
}

// openStorage opens the SQLite database in the configured data directory.
func openStorage(c *config.Config) (*storage.Storage, error) {
	if err := config.EnsureDir(c.Storage.DataDir); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return storage.New(c.Storage.DataDir)
}

// openArchive returns the configured report archive, or nil when archiving is
// disabled. The returned func releases whatever was opened beyond st.
func openArchive(c *config.Config, st *storage.Storage) (domain.ReportArchive, func() error, error) {
	noop := func() error { return nil }
	switch strings.ToLower(c.Storage.Archive) {
	case config.ArchiveNone:
		return nil, noop, nil
	case config.ArchiveRedis:
		r, err := archive.NewRedisFromURL(c.Storage.RedisURL, archive.WithTTL(c.Storage.ReportTTL))
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	}
	return st, noop, nil
}
