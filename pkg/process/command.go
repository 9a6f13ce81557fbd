package process

import (
	"fmt"
	"strconv"
	"strings"
)

// Command is a single external program invocation.
type Command struct {
	Path string
	Args []string
}

// Cmd builds a command from an executable and a list of arguments.
// Arguments may be strings, numbers, booleans, fmt.Stringer values or string slices,
// the latter being expanded in place.
func Cmd(path interface{}, args ...interface{}) Command {
	cmd := Command{Path: stringify(path)}
	for _, arg := range args {
		switch val := arg.(type) {
		case []string:
			cmd.Args = append(cmd.Args, val...)
		case []fmt.Stringer:
			for _, s := range val {
				cmd.Args = append(cmd.Args, s.String())
			}
		default:
			cmd.Args = append(cmd.Args, stringify(val))
		}
	}

	return cmd
}

// String returns the command line, quoting arguments containing spaces.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quote(c.Path))
	for _, arg := range c.Args {
		parts = append(parts, quote(arg))
	}

	return strings.Join(parts, " ")
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\n'\"") {
		return strconv.Quote(s)
	}

	return s
}

func stringify(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return fmt.Sprint(val)
	}
}
