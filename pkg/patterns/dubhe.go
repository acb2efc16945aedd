package patterns

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/dubhe-dev/dubhe/pkg/models"
)

var (
	// ErrIncompleteRecord is returned when a record ends before all of its
	// fields were read.
	ErrIncompleteRecord = errors.New("incomplete threat record")
	// ErrUnexpectedField is returned when a field line is out of order.
	ErrUnexpectedField = errors.New("unexpected field")
)

// recordFields is the fixed layout of one .dubhe record. Each entry lists the
// accepted spellings of the label, normalised to lower-case letters.
var recordFields = [][]string{
	{"technique"},
	{"techniqueid", "techniquenum", "techniquenumber"},
	{"mitigation"},
	{"mitigationid", "mitigationnum", "mitigationnumber"},
	{"detectpattern", "detectionpattern"},
	{"mitigationpattern", "mitigationpatterns", "mitigatepattern"},
	{"mitigationanchor", "anchor", "mode"},
}

// RecordSize is the number of field lines per record.
var RecordSize = len(recordFields)

const (
	sentinelPrefix = "%"
	versionMarker  = "dubhe-patterns"
)

// Library is the content of one pattern file.
type Library struct {
	// Version is the declared library version, empty when the file has no
	// version header.
	Version string
	Threats []models.ThreatInfo
}

// ParseDubhe reads a .dubhe pattern stream.
//
// The stream is a sequence of "Label: value" lines, split at the first colon
// so values may contain ": ". Lines starting with '%' are sentinels that
// delimit records; a sentinel of the form "% dubhe-patterns v1.2.0" declares
// the library version. Blank lines are ignored. Every RecordSize field lines
// make one record, in the order technique, technique id, mitigation,
// mitigation id, detect pattern, mitigation pattern, mitigation anchor.
func ParseDubhe(r io.Reader) (*Library, error) {
	lib := &Library{}
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var pending []string
	pendingStart := 0
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, sentinelPrefix) {
			if v, ok := versionFromSentinel(line); ok {
				lib.Version = v
			}
			if len(pending) > 0 {
				return nil, fmt.Errorf("%w: record starting at line %d has %d of %d fields",
					ErrIncompleteRecord, pendingStart, len(pending), RecordSize)
			}
			continue
		}

		if len(pending) == 0 {
			pendingStart = lineNo
		}
		pending = append(pending, line)
		if len(pending) == RecordSize {
			threat, err := parseRecord(pending)
			if err != nil {
				return nil, fmt.Errorf("record starting at line %d: %w", pendingStart, err)
			}
			lib.Threats = append(lib.Threats, threat)
			pending = pending[:0]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pattern stream: %w", err)
	}
	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: record starting at line %d has %d of %d fields",
			ErrIncompleteRecord, pendingStart, len(pending), RecordSize)
	}
	return lib, nil
}

func versionFromSentinel(line string) (string, bool) {
	fields := strings.Fields(strings.TrimLeft(line, sentinelPrefix))
	if len(fields) == 2 && fields[0] == versionMarker {
		return fields[1], true
	}
	return "", false
}

func parseRecord(lines []string) (models.ThreatInfo, error) {
	values := make([]string, len(lines))
	for i, line := range lines {
		label, value, ok := strings.Cut(line, ":")
		if !ok {
			return models.ThreatInfo{}, fmt.Errorf("%w: line %q has no label", ErrUnexpectedField, line)
		}
		if !labelMatches(label, recordFields[i]) {
			return models.ThreatInfo{}, fmt.Errorf("%w: %q where %q was expected", ErrUnexpectedField, strings.TrimSpace(label), recordFields[i][0])
		}
		values[i] = strings.TrimSpace(value)
	}

	threat := models.ThreatInfo{
		Technique:    values[0],
		TechniqueID:  values[1],
		Mitigation:   values[2],
		MitigationID: values[3],
	}

	detect, err := ParseLiteral(values[4])
	if err != nil {
		return models.ThreatInfo{}, fmt.Errorf("detect pattern: %w", err)
	}
	if threat.DetectPattern, err = tokensFromValue(detect); err != nil {
		return models.ThreatInfo{}, fmt.Errorf("detect pattern: %w", err)
	}

	mitigation, err := ParseLiteral(values[5])
	if err != nil {
		return models.ThreatInfo{}, fmt.Errorf("mitigation pattern: %w", err)
	}
	if threat.MitigationPatterns, err = mitigationPatternsFromValue(mitigation); err != nil {
		return models.ThreatInfo{}, fmt.Errorf("mitigation pattern: %w", err)
	}

	anchor, err := ParseLiteral(values[6])
	if err != nil {
		return models.ThreatInfo{}, fmt.Errorf("mitigation anchor: %w", err)
	}
	if threat.MitigationAnchor, err = anchorFromValue(anchor); err != nil {
		return models.ThreatInfo{}, err
	}
	return threat, nil
}

func labelMatches(label string, accepted []string) bool {
	var b strings.Builder
	for _, r := range label {
		if unicode.IsLetter(r) {
			b.WriteRune(unicode.ToLower(r))
		}
	}
	norm := b.String()
	for _, a := range accepted {
		if norm == a {
			return true
		}
	}
	return false
}
