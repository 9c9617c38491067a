package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"pairScout/internal/model"
)

const (
	pairsFile = "pairs.jsonl"
	swapsFile = "swaps.jsonl"
	mintsFile = "mints.jsonl"
	burnsFile = "burns.jsonl"
)

// JsonlStore writes one JSONL file per record kind under a directory.
type JsonlStore struct {
	dir string
	mu  sync.Mutex
}

func NewJsonlStore(dir string) *JsonlStore {
	return &JsonlStore{dir: dir}
}

func (s *JsonlStore) StorePair(ctx context.Context, pair model.TrackedPair) error {
	return s.append(pairsFile, pair)
}

func (s *JsonlStore) StoreSwap(ctx context.Context, record model.SwapRecord) error {
	return s.append(swapsFile, record)
}

func (s *JsonlStore) StoreMint(ctx context.Context, record model.LiquidityRecord) error {
	return s.append(mintsFile, record)
}

func (s *JsonlStore) StoreBurn(ctx context.Context, record model.LiquidityRecord) error {
	return s.append(burnsFile, record)
}

// FetchPairs reads every stored pair. A pair stored twice is returned once,
// keeping the first record.
func (s *JsonlStore) FetchPairs(ctx context.Context) ([]model.TrackedPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(filepath.Join(s.dir, pairsFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open pairs file: %w", err)
	}
	defer file.Close()

	var pairs []model.TrackedPair
	seen := make(map[string]struct{})
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var pair model.TrackedPair
		if err := json.Unmarshal(scanner.Bytes(), &pair); err != nil {
			return nil, fmt.Errorf("decode pair at line %d: %w", line, err)
		}
		if _, ok := seen[pair.Address]; ok {
			continue
		}
		seen[pair.Address] = struct{}{}
		pairs = append(pairs, pair)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read pairs file: %w", err)
	}
	return pairs, nil
}

func (s *JsonlStore) append(name string, record interface{}) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	file, err := os.OpenFile(filepath.Join(s.dir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open output file: %w", err)
	}
	defer file.Close()

	writer := bufio.NewWriter(file)
	if _, err := writer.Write(line); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	if err := writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	if err := writer.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	return nil
}
