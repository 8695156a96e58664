package textfile

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gridml/netcase/pkg/domain/entities"
)

// Pattern line grammar:
//
//	line    = name ", missingBus [" ids "]" ", missingBranch [" ids "]"
//	ids     = { ws id } ws
//	name    = any text not containing ", missingBus ["
//	id      = any run of non-whitespace characters other than "[" and "]"
//
// Example:
//
//	Pattern-1, missingBus [ Bus15 ], missingBranch [ Bus9->Bus15(1) Bus13->Bus15(1) ]
const (
	busListOpen    = ", missingBus ["
	branchListOpen = ", missingBranch ["
	listClose      = "]"
)

// ErrInvalidPatternName is returned when a pattern name cannot be written as
// the name field of a pattern line
var ErrInvalidPatternName = errors.New("textfile: pattern name cannot be stored in a pattern line")

// ValidatePatternName checks that a name survives a write and parse round
// trip: non-empty, no surrounding whitespace, no line breaks, no leading "#"
// and no missingBus list separator.
func ValidatePatternName(name string) error {
	switch {
	case name == "" || strings.TrimSpace(name) != name,
		strings.ContainsAny(name, "\r\n"),
		strings.HasPrefix(name, "#"),
		strings.Contains(name, busListOpen):
		return fmt.Errorf("%w: %q", ErrInvalidPatternName, name)
	}
	return nil
}

// FormatPattern renders a pattern as one line, ids in insertion order
func FormatPattern(p *entities.OperationPattern) string {
	var b strings.Builder
	b.WriteString(p.Name())
	b.WriteString(busListOpen)
	writeIDs(&b, p.MissingBusIDs())
	b.WriteString(listClose)
	b.WriteString(branchListOpen)
	writeIDs(&b, p.MissingBranchIDs())
	b.WriteString(listClose)
	return b.String()
}

func writeIDs(b *strings.Builder, ids []string) {
	for _, id := range ids {
		b.WriteString(" ")
		b.WriteString(id)
	}
	b.WriteString(" ")
}

// ParsePattern parses one pattern line. Errors are *entities.ParseError
// without path or line number; file readers fill those in.
func ParsePattern(line string) (*entities.OperationPattern, error) {
	fail := func(reason string) (*entities.OperationPattern, error) {
		return nil, &entities.ParseError{Text: line, Reason: reason}
	}

	text := strings.TrimSpace(line)
	busAt := strings.Index(text, busListOpen)
	if busAt < 0 {
		return fail("missing \"missingBus [\" list")
	}
	name := strings.TrimSpace(text[:busAt])
	if name == "" {
		return fail("empty pattern name")
	}

	rest := text[busAt+len(busListOpen):]
	busEnd := strings.Index(rest, listClose)
	if busEnd < 0 {
		return fail("unterminated missingBus list")
	}
	busIDs := rest[:busEnd]
	rest = rest[busEnd+len(listClose):]

	if !strings.HasPrefix(rest, branchListOpen) {
		return fail("missing \"missingBranch [\" list")
	}
	rest = rest[len(branchListOpen):]
	branchEnd := strings.Index(rest, listClose)
	if branchEnd < 0 {
		return fail("unterminated missingBranch list")
	}
	branchIDs := rest[:branchEnd]
	if trailing := strings.TrimSpace(rest[branchEnd+len(listClose):]); trailing != "" {
		return fail(fmt.Sprintf("unexpected text after missingBranch list: %q", trailing))
	}
	if strings.Contains(busIDs, "[") || strings.Contains(branchIDs, "[") {
		return fail("nested \"[\" in id list")
	}

	p := entities.NewOperationPattern(name)
	for _, id := range strings.Fields(busIDs) {
		if !p.MarkMissing(entities.BusElement, id) {
			return fail(fmt.Sprintf("duplicate missing bus %s", id))
		}
	}
	for _, id := range strings.Fields(branchIDs) {
		if !p.MarkMissing(entities.BranchElement, id) {
			return fail(fmt.Sprintf("duplicate missing branch %s", id))
		}
	}
	return p, nil
}
