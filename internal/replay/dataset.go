// Package replay sends a labelled sentence-pair dataset to a running
// endpoint and records every answer.
package replay

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"github.com/baditaflorin/go_pair_features/internal/core/domain"
)

// Column layout of the tab-separated dataset. The first row is a header.
const (
	colID1    = 1
	colID2    = 2
	colS1     = 3
	colS2     = 4
	minFields = 5
)

// Row is one dataset line ready to be sent.
type Row struct {
	// InferenceID is the concatenation of both sentence ids.
	InferenceID string
	Pair        domain.RawPair
}

// ReadTSV parses the dataset. Lines with too few columns are skipped and
// counted.
func ReadTSV(r io.Reader) ([]Row, int, error) {
	reader := csv.NewReader(r)
	reader.Comma = '\t'
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("replay: reading header: %w", err)
	}

	var (
		rows    []Row
		skipped int
	)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				skipped++
				continue
			}
			return nil, skipped, fmt.Errorf("replay: reading dataset: %w", err)
		}
		if len(record) < minFields {
			skipped++
			continue
		}
		rows = append(rows, Row{
			InferenceID: record[colID1] + record[colID2],
			Pair:        domain.RawPair{S1: record[colS1], S2: record[colS2]},
		})
	}
	return rows, skipped, nil
}

// ReadTSVFile opens path and parses it with ReadTSV.
func ReadTSVFile(path string) ([]Row, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("replay: %w", err)
	}
	defer f.Close()
	return ReadTSV(f)
}

// Sample draws n rows without replacement using seed. n <= 0 or n >= len(rows)
// returns every row, still shuffled.
func Sample(rows []Row, n int, seed uint64) []Row {
	if n <= 0 || n > len(rows) {
		n = len(rows)
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	perm := rng.Perm(len(rows))

	out := make([]Row, n)
	for i := 0; i < n; i++ {
		out[i] = rows[perm[i]]
	}
	return out
}
