// Package sqlscript runs SQL script files as a sequence of independently checked chunks.
//
// A script is split into chunks by directive comments:
//
//	--- #step Index ISBNs
//	--- #allow duplicate_table
//	CREATE INDEX book_isbn_idx ON locmds.book_isbn (isbn);
//
// "#step <label>" starts a new chunk, "#notx" runs the current chunk outside of a transaction
// (needed for statements such as CREATE INDEX CONCURRENTLY or VACUUM), and "#allow <condition>"
// tolerates a PostgreSQL error condition, by name or SQLSTATE code, for the current chunk.
//
// A "#notx" chunk must hold a single statement: PostgreSQL runs a query string with several
// statements in one implicit transaction, which CREATE INDEX CONCURRENTLY and VACUUM refuse.
// Text before the first "#step" forms a chunk of its own.
package sqlscript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrUnknownDirective = errors.New("unknown directive")
	ErrMissingArgument  = errors.New("directive requires an argument")
)

var directiveRE = regexp.MustCompile(`^---\s*#(\w+)\s*(.*)$`)

// Chunk is a group of statements executed and checked as one unit.
type Chunk struct {
	Label       string
	SQL         string
	Allowed     []string
	Line        int
	Transaction bool
}

type Script struct {
	Name   string
	Chunks []Chunk
}

// Load reads and parses a script file.
func Load(path string) (*Script, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to open %s", path)
	}
	defer file.Close()

	return Parse(file, path)
}

// Parse splits a script into chunks. Chunks with no SQL are dropped.
func Parse(rd io.Reader, name string) (*Script, error) {
	script := &Script{Name: name}
	cur := Chunk{Label: "preamble", Line: 1, Transaction: true}

	var body strings.Builder

	flush := func() {
		cur.SQL = strings.TrimSpace(body.String())
		if cur.SQL != "" {
			script.Chunks = append(script.Chunks, cur)
		}
		body.Reset()
	}

	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		match := directiveRE.FindStringSubmatch(strings.TrimSpace(line))
		if match == nil {
			body.WriteString(line)
			body.WriteByte('\n')

			continue
		}

		arg := strings.TrimSpace(match[2])

		switch match[1] {
		case "step":
			flush()
			cur = Chunk{Label: arg, Line: lineNo, Transaction: true}
			if cur.Label == "" {
				cur.Label = fmt.Sprintf("line %d", lineNo)
			}
		case "notx":
			cur.Transaction = false
		case "allow":
			if arg == "" {
				return nil, errors.Wrapf(ErrMissingArgument, "%s:%d: #allow", name, lineNo)
			}
			cur.Allowed = append(cur.Allowed, strings.Fields(arg)...)
		default:
			return nil, errors.Wrapf(ErrUnknownDirective, "%s:%d: #%s", name, lineNo, match[1])
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "unable to read %s", name)
	}

	flush()

	return script, nil
}
