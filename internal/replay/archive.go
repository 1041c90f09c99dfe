package replay

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/alphasnake/internal/model"
)

// Row is a single self-play training example in column-friendly form,
// intended for long-term archival of replay data alongside the
// in-memory ring buffer.
type Row struct {
	GameID string  `parquet:"game_id,dict"`
	Turn   int32   `parquet:"turn"`
	State  []byte  `parquet:"state"`
	Policy []byte  `parquet:"policy"`
	Value  float32 `parquet:"value"`
}

// EncodeExample converts a model.Example into its archival Row form,
// little-endian encoding the state tensor and target policy as raw
// bytes so the schema stays a fixed set of scalar/binary columns
// regardless of board size.
func EncodeExample(gameID string, turn int, ex model.Example) Row {
	state := make([]byte, len(ex.State)*4)
	for i, v := range ex.State {
		binary.LittleEndian.PutUint32(state[i*4:], math.Float32bits(v))
	}
	policy := make([]byte, len(ex.Policy)*4)
	for i, v := range ex.Policy {
		binary.LittleEndian.PutUint32(policy[i*4:], math.Float32bits(v))
	}
	return Row{GameID: gameID, Turn: int32(turn), State: state, Policy: policy, Value: ex.Value}
}

// ArchiveBatchAtomic writes rows to a new parquet file under outDir,
// using a temp-file-then-rename so readers never observe a partial
// write. The returned path is the final file location.
func ArchiveBatchAtomic(outDir string, rows []Row) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("replay: create archive dir: %w", err)
	}

	name := fmt.Sprintf("replay_%d.parquet", time.Now().UnixNano())
	finalPath := filepath.Join(outDir, name)
	tmpPath := finalPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "selfplay_example_v1"),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("replay: write archive: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("replay: rename archive: %w", err)
	}
	return finalPath, nil
}
