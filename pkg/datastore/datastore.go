// Package datastore is a small JSON file backed key/value store with atomic
// writes, rotating backups and periodic flushing.
package datastore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrClosed      = errors.New("datastore is closed")
	ErrMemoryLimit = errors.New("datastore memory limit exceeded")
)

type Config struct {
	FilePath string
	// AutoSaveInterval of zero disables the background flush.
	AutoSaveInterval time.Duration
	// MaxMemorySize in bytes, 0 means unlimited.
	MaxMemorySize int64
	BackupCount   int
	Logger        zerolog.Logger
}

func DefaultConfig(filePath string) Config {
	return Config{
		FilePath:         filePath,
		AutoSaveInterval: 10 * time.Second,
		MaxMemorySize:    100 * 1024 * 1024,
		BackupCount:      3,
		Logger:           log.With().Str("component", "datastore").Logger(),
	}
}

type DataStore struct {
	mu         sync.RWMutex
	data       map[string]any
	memorySize int64

	saveMu       sync.Mutex
	lastChecksum string

	closeMu sync.RWMutex
	closed  bool

	file   string
	config Config
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(filePath string) (*DataStore, error) {
	return NewWithConfig(DefaultConfig(filePath))
}

// NewWithConfig opens or creates the file. Unlike a process-wide store it does
// not watch signals: the owner calls Close during its own shutdown.
func NewWithConfig(config Config) (*DataStore, error) {
	if config.FilePath == "" {
		return nil, fmt.Errorf("file path cannot be empty")
	}

	if err := os.MkdirAll(filepath.Dir(config.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	ds := &DataStore{
		data:   make(map[string]any),
		file:   config.FilePath,
		config: config,
	}

	_, err := os.Stat(config.FilePath)
	switch {
	case os.IsNotExist(err):
		if err := ds.writeFileAtomic([]byte("{}")); err != nil {
			return nil, fmt.Errorf("failed to create empty JSON file: %w", err)
		}
	case err == nil:
		if err := ds.loadFromFile(); err != nil {
			return nil, fmt.Errorf("failed to load data from file: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to check file existence: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ds.cancel = cancel
	if config.AutoSaveInterval > 0 {
		ds.wg.Add(1)
		go ds.autoSave(ctx)
	}

	return ds, nil
}

func (ds *DataStore) isClosed() bool {
	ds.closeMu.RLock()
	defer ds.closeMu.RUnlock()
	return ds.closed
}

// Add stores value under key. The value must survive a JSON round trip; reads
// after a reload see the decoded form.
func (ds *DataStore) Add(key string, value any) error {
	if ds.isClosed() {
		return ErrClosed
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	next := ds.memorySize - estimateSize(ds.data[key]) + estimateSize(value)
	if ds.config.MaxMemorySize > 0 && next > ds.config.MaxMemorySize {
		ds.config.Logger.Warn().Str("key", key).Int64("size", next).Msg("memory limit would be exceeded")
		return ErrMemoryLimit
	}
	ds.memorySize = next
	ds.data[key] = value
	return nil
}

func (ds *DataStore) Get(key string) (any, bool) {
	if ds.isClosed() {
		return nil, false
	}

	ds.mu.RLock()
	defer ds.mu.RUnlock()
	value, exists := ds.data[key]
	return value, exists
}

func (ds *DataStore) Delete(key string) {
	if ds.isClosed() {
		return
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	if value, exists := ds.data[key]; exists {
		ds.memorySize -= estimateSize(value)
		delete(ds.data, key)
	}
}

// SaveToFile forces an immediate flush.
func (ds *DataStore) SaveToFile() error {
	if ds.isClosed() {
		return ErrClosed
	}
	return ds.saveToFile()
}

// Close stops the background flush and writes the final state.
func (ds *DataStore) Close() error {
	ds.closeMu.Lock()
	if ds.closed {
		ds.closeMu.Unlock()
		return nil
	}
	ds.closed = true
	ds.closeMu.Unlock()

	ds.cancel()
	ds.wg.Wait()

	return ds.saveToFile()
}

func (ds *DataStore) saveToFile() error {
	ds.mu.RLock()
	data, err := json.MarshalIndent(ds.data, "", "  ")
	ds.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	ds.saveMu.Lock()
	defer ds.saveMu.Unlock()

	checksum := checksumOf(data)
	if checksum == ds.lastChecksum {
		return nil
	}

	if ds.config.BackupCount > 0 {
		if err := ds.createBackup(); err != nil {
			ds.config.Logger.Warn().Err(err).Msg("failed to create backup")
		}
	}

	if err := ds.writeFileAtomic(data); err != nil {
		return err
	}

	if err := ds.verifyFile(checksum); err != nil {
		return fmt.Errorf("file verification failed: %w", err)
	}

	ds.lastChecksum = checksum
	return nil
}

func (ds *DataStore) loadFromFile() error {
	data, err := os.ReadFile(ds.file)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}

	var temp map[string]any
	if err := json.Unmarshal(data, &temp); err != nil {
		return fmt.Errorf("invalid JSON format: %w", err)
	}
	if temp == nil {
		temp = make(map[string]any)
	}

	ds.mu.Lock()
	ds.data = temp
	ds.memorySize = 0
	for _, v := range temp {
		ds.memorySize += estimateSize(v)
	}
	ds.mu.Unlock()

	ds.lastChecksum = checksumOf(data)
	return nil
}

func (ds *DataStore) writeFileAtomic(data []byte) error {
	tmpFile := ds.file + ".tmp"

	f, err := os.OpenFile(tmpFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to write to temp file: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpFile)
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpFile, ds.file); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

func (ds *DataStore) verifyFile(checksum string) error {
	actual, err := os.ReadFile(ds.file)
	if err != nil {
		return fmt.Errorf("failed to read file for verification: %w", err)
	}
	if checksumOf(actual) != checksum {
		return fmt.Errorf("file checksum mismatch")
	}
	return nil
}

func (ds *DataStore) createBackup() error {
	if _, err := os.Stat(ds.file); os.IsNotExist(err) {
		return nil
	}

	backupFile := fmt.Sprintf("%s.backup.%s", ds.file, time.Now().Format("20060102_150405.000"))

	src, err := os.Open(ds.file)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(backupFile)
	if err != nil {
		return err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}

	ds.cleanupOldBackups()
	return nil
}

// cleanupOldBackups keeps the newest BackupCount backups.
func (ds *DataStore) cleanupOldBackups() {
	matches, err := filepath.Glob(ds.file + ".backup.*")
	if err != nil || len(matches) <= ds.config.BackupCount {
		return
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	var files []backup
	for _, match := range matches {
		if info, err := os.Stat(match); err == nil {
			files = append(files, backup{match, info.ModTime()})
		}
	}
	sort.Slice(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.Before(files[j].modTime)
	})

	for i := 0; i < len(files)-ds.config.BackupCount; i++ {
		os.Remove(files[i].path)
	}
}

func (ds *DataStore) autoSave(ctx context.Context) {
	defer ds.wg.Done()

	ticker := time.NewTicker(ds.config.AutoSaveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ds.saveToFile(); err != nil {
				ds.config.Logger.Error().Err(err).Msg("auto-save failed")
			}
		}
	}
}

func (ds *DataStore) Stats() map[string]any {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	return map[string]any{
		"keys":        len(ds.data),
		"memory_size": ds.memorySize,
		"file_path":   ds.file,
	}
}

func checksumOf(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}

func estimateSize(value any) int64 {
	if value == nil {
		return 0
	}
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
