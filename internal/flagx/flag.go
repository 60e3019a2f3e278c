// Package flagx lets several independent flag sets share os.Args: each set
// keeps only the arguments it owns and ignores the rest.
package flagx

import (
	"flag"
	"strings"
)

// Set names the flags one parser owns. Bool flags never consume the
// following argument, matching the flag package, so "-f false" must be
// written "-f=false".
type Set struct {
	Flags []string
	Bools []string
}

func (s Set) kind(name string) (owned, isBool bool) {
	for _, b := range s.Bools {
		if b == name {
			return true, true
		}
	}
	for _, f := range s.Flags {
		if f == name {
			return true, false
		}
	}
	return false, false
}

// Filter returns the owned flags from args with their values, in order.
// Accepted forms are "-f value", "-f=value" and, for bools, a bare "-f".
func (s Set) Filter(args []string) []string {
	out := []string{}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(arg, "=")
		owned, isBool := s.kind(name)
		if !owned {
			continue
		}
		out = append(out, arg)
		if hasValue || isBool {
			continue
		}
		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			out = append(out, args[i+1])
			i++
		}
	}
	return out
}

// FilterArgs is Set{Flags: allowed}.Filter(args).
func FilterArgs(args []string, allowed []string) []string {
	return Set{Flags: allowed}.Filter(args)
}

// ConfigPath returns the value of -c / -config in args, or "" when absent.
// The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.StringVar(&path, "config", "", "path to JSON config file")
	fs.StringVar(&path, "c", "", "path to JSON config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	return path
}
