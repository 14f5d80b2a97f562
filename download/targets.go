package download

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// ParseTargets reads one target per line in the form "<url> [md5]".
// Blank lines and lines starting with '#' are skipped.
func ParseTargets(r io.Reader) ([]Target, error) {
	var targets []Target

	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) > 2 {
			return nil, fmt.Errorf("line %d: expected \"<url> [md5]\", got %d fields", lineNo, len(fields))
		}

		var md5 string
		if len(fields) == 2 {
			md5 = fields[1]
		}

		target, err := NewTarget(fields[0], md5)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		targets = append(targets, target)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read targets: %w", err)
	}

	return targets, nil
}
