package cache

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Cache mirrors raw upstream events on the local filesystem, one directory
// per wallet, one JSONL file per feed. It is a fallback for the embedded
// store, never the source of truth for pipeline state.
type Cache struct {
	dir string
}

func New(dir string) *Cache {
	return &Cache{dir: dir}
}

func (c *Cache) walletDir(address string) (string, error) {
	target := filepath.Join(c.dir, strings.ToLower(address))
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}
	return target, nil
}

// AppendEvents appends raw events to <cache>/<wallet>/<kind>.jsonl.
func (c *Cache) AppendEvents(address, kind string, events []json.RawMessage) error {
	if len(events) == 0 {
		return nil
	}
	dir, err := c.walletDir(address)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(dir, kind+".jsonl"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, event := range events {
		if _, err := w.Write(event); err != nil {
			return fmt.Errorf("write cache event: %w", err)
		}
		if err := w.WriteByte('\n'); err != nil {
			return fmt.Errorf("write cache event: %w", err)
		}
	}
	return w.Flush()
}

// EachEvent walks every line of <kind>.jsonl for the wallet. A missing file
// is not an error. The callback may return an error to stop the walk.
func (c *Cache) EachEvent(address, kind string, fn func(raw []byte) error) error {
	path := filepath.Join(c.dir, strings.ToLower(address), kind+".jsonl")
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open cache file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := fn([]byte(line)); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// UpdateMetadata merges fields into <cache>/<wallet>/meta.json.
func (c *Cache) UpdateMetadata(address string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	dir, err := c.walletDir(address)
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "meta.json")

	data := make(map[string]any)
	if raw, err := os.ReadFile(path); err == nil {
		// Corrupt metadata is discarded, not fatal.
		_ = json.Unmarshal(raw, &data)
	}
	for key, value := range fields {
		data[key] = value
	}

	out, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	return os.WriteFile(path, out, 0o644)
}

// WriteJSON replaces <cache>/<wallet>/<filename> with the given payload.
func (c *Cache) WriteJSON(address, filename string, payload any) error {
	dir, err := c.walletDir(address)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	return os.WriteFile(filepath.Join(dir, filename), out, 0o644)
}

// ReadJSON loads <cache>/<wallet>/<filename>; reports whether it existed.
func (c *Cache) ReadJSON(address, filename string, out any) (bool, error) {
	path := filepath.Join(c.dir, strings.ToLower(address), filename)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read cache file: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("decode cache file: %w", err)
	}
	return true, nil
}
