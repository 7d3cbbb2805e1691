// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package persist implements the cache's on-disk codecs: the text
// key/value format of §6.4, and an alternative SQLite-backed codec for
// callers with large trees who want indexed reload instead of a full
// file parse. The two formats are never mixed in one file.
package persist

import (
	"bufio"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nshi/falcon/lib/entry"
	"github.com/nshi/falcon/lib/ferr"
)

// Format selects a cache codec.
type Format int

const (
	// FormatText is the default §6.4 key/value file.
	FormatText Format = iota
	// FormatSQLite stores entries in a modernc.org/sqlite database file.
	FormatSQLite
)

// codecVersion guards against loading a file written by an incompatible
// future layout. original falcon's cache.c refuses to load a foreign
// version rather than guessing; this preserves that behaviour.
const codecVersion = 1

// Save writes entries to path using the given format.
func Save(path string, format Format, entries []entry.Entry) error {
	switch format {
	case FormatSQLite:
		return saveSQLite(path, entries)
	default:
		return saveText(path, entries)
	}
}

// Load reads entries from path using the given format.
func Load(path string, format Format) ([]entry.Entry, error) {
	switch format {
	case FormatSQLite:
		return loadSQLite(path)
	default:
		return loadText(path)
	}
}

func saveText(path string, entries []entry.Entry) error {
	f, err := os.Create(path)
	if err != nil {
		return ferr.New(ferr.IO, "persist.Save", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, "[meta]")
	fmt.Fprintf(w, "version = %d\n", codecVersion)
	fmt.Fprintln(w, "[entries]")
	for _, e := range entries {
		watch := 0
		if e.Watch {
			watch = 1
		}
		fmt.Fprintf(w, "%s = %d;%d;%d;%d\n", e.Name, e.Mode, e.Size, e.MTime, watch)
	}
	if err := w.Flush(); err != nil {
		return ferr.New(ferr.IO, "persist.Save", err)
	}
	return nil
}

func loadText(path string) ([]entry.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, ferr.New(ferr.IO, "persist.Load", err)
	}
	defer f.Close()

	var (
		entries []entry.Entry
		section string
		version int
	)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			section = strings.ToLower(strings.TrimSuffix(strings.TrimPrefix(line, "["), "]"))
			continue
		}
		switch section {
		case "meta":
			k, v, ok := splitKV(line)
			if ok && k == "version" {
				version, _ = strconv.Atoi(strings.TrimSpace(v))
			}
		case "entries":
			e, err := parseEntryLine(line)
			if err != nil {
				return nil, ferr.New(ferr.Codec, "persist.Load", err)
			}
			entries = append(entries, e)
		default:
			// Unknown sections outside [entries]/[meta] are ignored.
		}
	}
	if err := sc.Err(); err != nil {
		return nil, ferr.New(ferr.IO, "persist.Load", err)
	}
	if version != 0 && version != codecVersion {
		return nil, ferr.New(ferr.Codec, "persist.Load", fmt.Errorf("unsupported cache file version %d", version))
	}
	return entries, nil
}

// fileMode centralises the uint -> os.FileMode conversion shared by both
// codecs.
func fileMode(v uint64) os.FileMode { return os.FileMode(v) }

func splitKV(line string) (key, value string, ok bool) {
	i := strings.Index(line, "=")
	if i < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:i]), line[i+1:], true
}

func parseEntryLine(line string) (entry.Entry, error) {
	key, value, ok := splitKV(line)
	if !ok {
		return entry.Entry{}, fmt.Errorf("malformed entry line: %q", line)
	}
	parts := strings.Split(strings.TrimSpace(value), ";")
	if len(parts) != 4 {
		return entry.Entry{}, fmt.Errorf("malformed entry value: %q", value)
	}
	mode, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return entry.Entry{}, err
	}
	size, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil {
		return entry.Entry{}, err
	}
	mtime, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return entry.Entry{}, err
	}
	watch, err := strconv.ParseUint(parts[3], 10, 8)
	if err != nil {
		return entry.Entry{}, err
	}
	return entry.Entry{
		Name:  key,
		Mode:  fileMode(mode),
		Size:  size,
		MTime: mtime,
		Watch: watch != 0,
	}, nil
}

func saveSQLite(path string, entries []entry.Entry) error {
	_ = os.Remove(path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return ferr.New(ferr.IO, "persist.Save", err)
	}
	defer db.Close()

	schema := []string{
		`CREATE TABLE meta (version INTEGER NOT NULL)`,
		`CREATE TABLE entries (name TEXT PRIMARY KEY, mode INTEGER NOT NULL, size INTEGER NOT NULL, mtime INTEGER NOT NULL, watch INTEGER NOT NULL)`,
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			return ferr.New(ferr.IO, "persist.Save", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		return ferr.New(ferr.IO, "persist.Save", err)
	}
	if _, err := tx.Exec(`INSERT INTO meta(version) VALUES (?)`, codecVersion); err != nil {
		tx.Rollback()
		return ferr.New(ferr.IO, "persist.Save", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO entries(name, mode, size, mtime, watch) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return ferr.New(ferr.IO, "persist.Save", err)
	}
	defer stmt.Close()
	for _, e := range entries {
		watch := 0
		if e.Watch {
			watch = 1
		}
		if _, err := stmt.Exec(e.Name, uint32(e.Mode), e.Size, e.MTime, watch); err != nil {
			tx.Rollback()
			return ferr.New(ferr.IO, "persist.Save", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return ferr.New(ferr.IO, "persist.Save", err)
	}
	return nil
}

func loadSQLite(path string) ([]entry.Entry, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ferr.New(ferr.IO, "persist.Load", err)
	}
	defer db.Close()

	var version int
	if err := db.QueryRow(`SELECT version FROM meta LIMIT 1`).Scan(&version); err != nil {
		return nil, ferr.New(ferr.Codec, "persist.Load", err)
	}
	if version != codecVersion {
		return nil, ferr.New(ferr.Codec, "persist.Load", fmt.Errorf("unsupported cache file version %d", version))
	}

	rows, err := db.Query(`SELECT name, mode, size, mtime, watch FROM entries`)
	if err != nil {
		return nil, ferr.New(ferr.Codec, "persist.Load", err)
	}
	defer rows.Close()

	var entries []entry.Entry
	for rows.Next() {
		var (
			name         string
			mode         uint32
			size, mtime  uint64
			watchInt     int
		)
		if err := rows.Scan(&name, &mode, &size, &mtime, &watchInt); err != nil {
			return nil, ferr.New(ferr.Codec, "persist.Load", err)
		}
		entries = append(entries, entry.Entry{
			Name:  name,
			Mode:  fileMode(uint64(mode)),
			Size:  size,
			MTime: mtime,
			Watch: watchInt != 0,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, ferr.New(ferr.Codec, "persist.Load", err)
	}
	return entries, nil
}
