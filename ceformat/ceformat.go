// Package ceformat reads and writes label elimination sequence files,
// the text format emitted by the offline preprocessing of OpenStreetMap
// extracts.
//
// The format is line-oriented:
//
//	5
//	lat lon osm_id priority collision_time label_length size_factor label
//	53.1431553 8.9351249 3627273522 1 1.4922737369836614 3300.0 11.0 'Timmersloh'
//	...
//
// The first line holds the number of labels, the second is a fixed
// header, and every following line is one label: position (lat, lon),
// source id, priority rank, visibility threshold, label length (ignored
// on read), size factor and the quoted label text.
package ceformat

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/hupe1980/labelgo/label"
)

// ErrCountMismatch is returned when the parsed label count differs from
// the count announced on the first line.
var ErrCountMismatch = errors.New("announced label count does not match parsed labels")

// header is the fixed second line of the format.
const header = "lat lon osm_id priority collision_time label_length size_factor label"

var lineRE = regexp.MustCompile(
	`^(?P<lat>-?\d{1,3}\.\d*(?:e-?\d+)?) ` +
		`(?P<lon>-?\d{1,3}\.\d*(?:e-?\d+)?) ` +
		`(?P<id>\d+) ` +
		`(?P<prio>\d+) ` +
		`(?P<t>\d+\.\d*(?:e-?\d+)?) ` +
		`(?P<len>\d+\.\d*(?:e-?\d+)?) ` +
		`(?P<fac>\d+\.\d*(?:e-?\d+)?) ` +
		`'(?P<name>.*)'$`,
)

// ParseOptions control parsing behavior.
type ParseOptions struct {
	// Strict fails on the first malformed label line instead of logging
	// and skipping it.
	Strict bool

	// Logger receives skipped-line warnings. Defaults to slog.Default.
	Logger *slog.Logger
}

// ParseLine parses a single label line.
func ParseLine(line string) (label.Label, error) {
	m := lineRE.FindStringSubmatch(line)
	if m == nil {
		return label.Label{}, fmt.Errorf("line does not match label format: %q", line)
	}

	field := func(name string) string {
		return m[lineRE.SubexpIndex(name)]
	}

	lat, err := strconv.ParseFloat(field("lat"), 64)
	if err != nil {
		return label.Label{}, fmt.Errorf("parse lat: %w", err)
	}
	lon, err := strconv.ParseFloat(field("lon"), 64)
	if err != nil {
		return label.Label{}, fmt.Errorf("parse lon: %w", err)
	}
	id, err := strconv.ParseInt(field("id"), 10, 64)
	if err != nil {
		return label.Label{}, fmt.Errorf("parse osm_id: %w", err)
	}
	prio, err := strconv.ParseInt(field("prio"), 10, 32)
	if err != nil {
		return label.Label{}, fmt.Errorf("parse priority: %w", err)
	}
	t, err := strconv.ParseFloat(field("t"), 64)
	if err != nil {
		return label.Label{}, fmt.Errorf("parse collision_time: %w", err)
	}
	fac, err := strconv.ParseFloat(field("fac"), 64)
	if err != nil {
		return label.Label{}, fmt.Errorf("parse size_factor: %w", err)
	}

	return label.Label{
		X:      lon,
		Y:      lat,
		T:      t,
		ID:     id,
		Prio:   int32(prio),
		Factor: fac,
		Name:   field("name"),
	}, nil
}

// Parse reads a label elimination sequence from r.
//
// Malformed label lines are logged and skipped unless Strict is set; a
// final count mismatch is always an error.
func Parse(r io.Reader, optFns ...func(o *ParseOptions)) ([]label.Label, error) {
	opts := ParseOptions{Logger: slog.Default()}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var (
		labels []label.Label
		total  int
		lineNo int
	)
	for scanner.Scan() {
		line := scanner.Text()
		lineNo++

		switch {
		case lineNo == 1:
			n, err := strconv.Atoi(strings.TrimSpace(line))
			if err != nil {
				return nil, fmt.Errorf("parse label count: %w", err)
			}
			if n < 0 {
				return nil, fmt.Errorf("parse label count: negative count %d", n)
			}
			total = n
			labels = make([]label.Label, 0, n)
		case lineNo == 2:
			// header line, content not validated
		default:
			l, err := ParseLine(line)
			if err != nil {
				if opts.Strict {
					return nil, fmt.Errorf("line %d: %w", lineNo, err)
				}
				opts.Logger.Warn("skipping malformed label line", "line", lineNo, "error", err)
				continue
			}
			labels = append(labels, l)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if lineNo == 0 {
		return nil, fmt.Errorf("parse label count: empty input")
	}

	if len(labels) != total {
		return nil, fmt.Errorf("%w: announced %d, parsed %d", ErrCountMismatch, total, len(labels))
	}
	return labels, nil
}

// ParseFile reads a label elimination sequence from the file at path.
func ParseFile(path string, optFns ...func(o *ParseOptions)) ([]label.Label, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, optFns...)
}

// Write emits labels in label elimination sequence format. The
// label_length column is not stored in the data model and is written as
// 0.0; Parse ignores it, so Write/Parse round-trips.
func Write(w io.Writer, labels []label.Label) error {
	bw := bufio.NewWriter(w)

	if _, err := fmt.Fprintf(bw, "%d\n%s\n", len(labels), header); err != nil {
		return err
	}
	for _, l := range labels {
		_, err := fmt.Fprintf(bw, "%s %s %d %d %s %s %s '%s'\n",
			formatFloat(l.Y), formatFloat(l.X), l.ID, l.Prio,
			formatFloat(l.T), formatFloat(0), formatFloat(l.Factor), l.Name)
		if err != nil {
			return err
		}
	}
	return bw.Flush()
}

// formatFloat renders v with an explicit decimal point so the output
// re-parses under the line regexp.
func formatFloat(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
