// Package flagx lets the server and the field client parse only the flags a
// component owns out of a shared argument list, so the config layers can be
// parsed independently of each other.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// flagName strips leading dashes: the flag package treats -name and --name
// the same, and so does FilterArgs.
func flagName(arg string) string {
	return strings.TrimLeft(arg, "-")
}

// FilterArgs returns the arguments that belong to allowedFlags, in order,
// together with their values. Both "-c conf.json" and "--config=conf.json"
// forms are kept; a following argument that starts with a dash is never
// taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[flagName(f)] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := allowed[flagName(name)]; !ok {
			continue
		}
		filtered = append(filtered, arg)

		if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			filtered = append(filtered, args[i+1])
			i++
		}
	}
	return filtered
}

// ConfigPath returns the JSON config path given with -c or -config in args,
// falling back to $FIELDSYNC_CONFIG. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config"}))

	if path == "" {
		path = os.Getenv(common.EnvConfigPath)
	}
	return path
}
