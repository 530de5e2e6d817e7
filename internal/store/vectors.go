package store

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"

	"github.com/DreamCats/textvec/internal/embedding"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// registerVectorFunctions makes vec_cosine(a, b) available to connections
// opened afterwards. Both arguments are float32 BLOBs.
func registerVectorFunctions() error {
	registerOnce.Do(func() {
		registerErr = sqlite.RegisterDeterministicScalarFunction("vec_cosine", 2, vecCosine)
	})
	return registerErr
}

func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := asVector(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asVector(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vec_cosine: dimension mismatch %d vs %d", len(a), len(b))
	}
	return float64(embedding.Similarity(a, b)), nil
}

func asVector(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return blobToVector(v)
	default:
		return nil, fmt.Errorf("vec_cosine: unsupported argument type %T; want BLOB", arg)
	}
}

// vectorToBlob converts a float32 slice to a little-endian binary blob
func vectorToBlob(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:i*4+4], math.Float32bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to a float32 slice
func blobToVector(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("blob size %d is not a multiple of 4", len(blob))
	}

	vector := make([]float32, len(blob)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4 : i*4+4]))
	}

	return vector, nil
}
