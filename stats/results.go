package stats

import (
	"fmt"
	"os"
)

// WriteResultsFile writes the summary as "<hits> <misses> <evictions>" to
// path, replacing any previous content. This is the format graders of the
// cache lab read back.
func WriteResultsFile(path string, s Summary) error {
	content := fmt.Sprintf("%d %d %d\n", s.Hits, s.Misses, s.Evictions)

	err := os.WriteFile(path, []byte(content), 0o644)
	if err != nil {
		return fmt.Errorf("writing results to %s: %w", path, err)
	}

	return nil
}
