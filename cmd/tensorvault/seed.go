package main

import (
	"bufio"
	"fmt"
	"iter"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/poiesic/tensorvault/core"
	"github.com/poiesic/tensorvault/retrieval"
)

// linesFromFile returns an iterator over lines in a file.
func linesFromFile(filename string) (iter.Seq[string], error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}

	return func(yield func(string) bool) {
		defer f.Close()
		scanner := bufio.NewScanner(f)
		for scanner.Scan() {
			if !yield(scanner.Text()) {
				return
			}
		}
	}, nil
}

// parseSeedLine reads one "entity|world|category|description" line. Blank
// lines and lines starting with '#' report ok=false. World and category may
// be empty; the description may itself contain '|'.
func parseSeedLine(line string) (retrieval.NewTensor, bool, error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return retrieval.NewTensor{}, false, nil
	}
	fields := strings.SplitN(line, "|", 4)
	if len(fields) != 4 {
		return retrieval.NewTensor{}, false, fmt.Errorf("malformed seed line %q: want entity|world|category|description", line)
	}
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if fields[0] == "" {
		return retrieval.NewTensor{}, false, fmt.Errorf("malformed seed line %q: %w", line, core.ErrEmptyID)
	}
	return retrieval.NewTensor{
		ID:          uuid.NewString(),
		EntityID:    fields[0],
		WorldID:     fields[1],
		Category:    fields[2],
		Description: fields[3],
		Tensor:      core.DefaultTensor(),
	}, true, nil
}
