package textfile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/gridml/netcase/pkg/domain/entities"
)

// ReadIndexMapping parses "<id> <index>" lines, e.g. "Bus1 0" or
// "Bus1->Bus2(1) 0". Blank lines and lines starting with '#' are skipped.
// source is only used in error messages.
func ReadIndexMapping(r io.Reader, source string) (*entities.IndexMapping, error) {
	mapping := entities.NewIndexMapping(64)
	err := scanLines(r, source, func(lineNo int, line string) error {
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return &entities.ParseError{Path: source, Line: lineNo, Text: line,
				Reason: fmt.Sprintf("expected \"<id> <index>\", got %d fields", len(fields))}
		}
		index, err := strconv.Atoi(fields[1])
		if err != nil || index < 0 {
			return &entities.ParseError{Path: source, Line: lineNo, Text: line,
				Reason: fmt.Sprintf("invalid index %q", fields[1])}
		}
		if err := mapping.Put(fields[0], index); err != nil {
			return &entities.ParseError{Path: source, Line: lineNo, Text: line, Reason: err.Error()}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mapping, nil
}

// WriteIndexMapping writes one "<id> <index>" line per entry, ordered by index
func WriteIndexMapping(w io.Writer, mapping *entities.IndexMapping) error {
	bw := bufio.NewWriter(w)
	for _, e := range mapping.Entries() {
		if _, err := fmt.Fprintf(bw, "%s %d\n", e.ID, e.Index); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadPatternSet parses one pattern per line, in file order
func ReadPatternSet(r io.Reader, source string) ([]*entities.OperationPattern, error) {
	var patterns []*entities.OperationPattern
	seen := make(map[string]int)
	err := scanLines(r, source, func(lineNo int, line string) error {
		p, err := ParsePattern(line)
		if err != nil {
			var pe *entities.ParseError
			if errors.As(err, &pe) {
				pe.Path, pe.Line = source, lineNo
				return pe
			}
			return err
		}
		if first, dup := seen[p.Name()]; dup {
			return &entities.ParseError{Path: source, Line: lineNo, Text: line,
				Reason: fmt.Sprintf("pattern %s already defined on line %d", p.Name(), first)}
		}
		seen[p.Name()] = lineNo
		patterns = append(patterns, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return patterns, nil
}

// WritePatternSet writes one pattern line per pattern, in slice order.
// Nothing is written when a pattern name is not representable.
func WritePatternSet(w io.Writer, patterns []*entities.OperationPattern) error {
	for _, p := range patterns {
		if err := ValidatePatternName(p.Name()); err != nil {
			return err
		}
	}
	bw := bufio.NewWriter(w)
	for _, p := range patterns {
		if _, err := fmt.Fprintln(bw, FormatPattern(p)); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func scanLines(r io.Reader, source string, fn func(lineNo int, line string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if err := fn(lineNo, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read %s: %w", source, err)
	}
	return nil
}
