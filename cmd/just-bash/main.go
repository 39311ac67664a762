// Command just-bash is a thin CLI wrapper around package engine: an
// external collaborator consuming the engine's contract, not part of the
// core. This binary exists only to exercise that contract from a
// terminal.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vercel-labs/just-bash/engine"
	"github.com/vercel-labs/just-bash/vfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("just-bash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cScript := fs.String("c", "", "run this script text instead of a file")
	errexit := fs.Bool("e", false, "equivalent to a leading `set -e`")
	root := fs.String("root", "/", "host directory mounted as the sandbox root")
	cwd := fs.String("cwd", "/", "working directory inside the sandbox")
	allowWrite := fs.Bool("allow-write", false, "allow writes back to --root (overlay instead of read-only)")
	jsonOut := fs.Bool("json", false, "emit {stdout,stderr,exitCode} as JSON")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	script, err := loadScript(*cScript, fs.Args(), stdin)
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}
	if *errexit {
		script = "set -e\n" + script
	}

	var fsys vfs.FS = vfs.NewReadOnlyHost(*root)
	if *allowWrite {
		fsys = vfs.NewOverlay(fsys)
	}

	eng, err := engine.New(engine.Options{FS: fsys, CWD: *cwd, Env: osEnviron()})
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	res := eng.Exec(script, nil)
	if *jsonOut {
		_ = json.NewEncoder(stdout).Encode(res)
	} else {
		io.WriteString(stdout, res.Stdout)
		io.WriteString(stderr, res.Stderr)
	}
	return res.ExitCode
}

func loadScript(cScript string, positional []string, stdin io.Reader) (string, error) {
	if cScript != "" {
		return cScript, nil
	}
	if len(positional) > 0 {
		content, err := os.ReadFile(positional[0])
		if err != nil {
			return "", fmt.Errorf("just-bash: %w", err)
		}
		return string(content), nil
	}
	content, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("just-bash: reading stdin: %w", err)
	}
	return string(content), nil
}

func osEnviron() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			out[kv[:i]] = kv[i+1:]
		}
	}
	return out
}
