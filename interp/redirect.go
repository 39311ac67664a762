package interp

import (
	"strings"

	"github.com/vercel-labs/just-bash/ast"
	"github.com/vercel-labs/just-bash/builtin"
	"github.com/vercel-labs/just-bash/parser"
	"github.com/vercel-labs/just-bash/vfs"
)

// setupRedirects applies a command's redirects in declaration order after
// expanding each target, wiring the result into a builtin.IO
// and temporarily retargeting ip.stdout/ip.stderr/ip.stdin so function and
// plugin dispatch see the same rerouted descriptors a builtin gets. The
// returned flush writes any file-backed fd back through the VFS and
// restores the interpreter's prior streams; it must run after the command
// has been dispatched.
func (ip *Interp) setupRedirects(redirects []*ast.Redirect) (builtin.IO, func(), error) {
	savedOut, savedErr, savedStdin := ip.stdout, ip.stderr, ip.stdin

	fdOut := map[int]*strings.Builder{1: ip.stdout, 2: ip.stderr}
	filePath := map[int]string{}

	stdinOverride := (*string)(nil)

	for _, r := range redirects {
		fd := r.Fd
		switch r.Kind {
		case ast.RedirWrite, ast.RedirClobber, ast.RedirAppend:
			if fd == -1 {
				fd = 1
			}
			target, err := ip.expandRedirectTarget(r.Target)
			if err != nil {
				return builtin.IO{}, func() {}, err
			}
			b := &strings.Builder{}
			if r.Kind == ast.RedirAppend {
				if content, err := ip.fs.ReadFile(target); err == nil {
					b.Write(content)
				}
			}
			fdOut[fd] = b
			filePath[fd] = target

		case ast.RedirDupOut:
			if fd == -1 {
				fd = 1
			}
			if r.TargetFd >= 0 {
				if src, ok := fdOut[r.TargetFd]; ok {
					fdOut[fd] = src
				}
			} else if r.Target != nil {
				target, err := ip.expandRedirectTarget(r.Target)
				if err != nil {
					return builtin.IO{}, func() {}, err
				}
				b := &strings.Builder{}
				fdOut[fd] = b
				filePath[fd] = target
			}

		case ast.RedirRead, ast.RedirReadWrite:
			target, err := ip.expandRedirectTarget(r.Target)
			if err != nil {
				return builtin.IO{}, func() {}, err
			}
			content, err := ip.fs.ReadFile(target)
			if err != nil {
				return builtin.IO{}, func() {}, err
			}
			s := string(content)
			stdinOverride = &s

		case ast.RedirDupIn:
			// fd-to-fd input duplication has no effect beyond fd 0 in this
			// single-stream model; nothing to rewire.

		case ast.RedirHereDoc, ast.RedirHereDocTab:
			body := r.HereDoc.Body
			if !r.HereDoc.Quoted {
				body = ip.expandHeredocBody(body)
			}
			stdinOverride = &body

		case ast.RedirHereString:
			s, err := ip.expandRedirectTarget(r.Target)
			if err != nil {
				return builtin.IO{}, func() {}, err
			}
			s += "\n"
			stdinOverride = &s
		}
	}

	ip.stdout = fdOut[1]
	ip.stderr = fdOut[2]
	if stdinOverride != nil {
		ip.stdin = &stdinCursor{data: *stdinOverride}
	}

	io := builtin.IO{Stdin: ip.stdin.data, Stdout: ip.stdout, Stderr: ip.stderr}

	flush := func() {
		for fd, path := range filePath {
			b, ok := fdOut[fd]
			if !ok {
				continue
			}
			_ = ip.fs.WriteFile(path, []byte(b.String()), vfs.DefaultFileMode)
		}
		// An fd duped onto another (`2>&1`) wrote straight into that fd's
		// buffer, which is either one of the stage's real sinks or a
		// file-backed buffer flushed above; only a buffer that is neither
		// forwards its content to the stage's real sink.
		backed := func(b *strings.Builder) bool {
			if b == savedOut || b == savedErr {
				return true
			}
			for fd := range filePath {
				if fdOut[fd] == b {
					return true
				}
			}
			return false
		}
		if !backed(fdOut[1]) {
			savedOut.WriteString(fdOut[1].String())
		}
		if !backed(fdOut[2]) {
			savedErr.WriteString(fdOut[2].String())
		}
		ip.stdout, ip.stderr, ip.stdin = savedOut, savedErr, savedStdin
	}

	return io, flush, nil
}

// expandHeredocBody expands $name/${name}/$(...) sequences in an unquoted
// here-document body. The here-doc lexer hands back raw text
// rather than parsed word parts, so this walks the bytes directly instead
// of routing through the Expander's WordPart-based pipeline.
func (ip *Interp) expandHeredocBody(body string) string {
	var b strings.Builder
	i := 0
	for i < len(body) {
		c := body[i]
		if c != '$' || i+1 >= len(body) {
			b.WriteByte(c)
			i++
			continue
		}
		switch {
		case body[i+1] == '(':
			depth := 1
			j := i + 2
			for j < len(body) && depth > 0 {
				if body[j] == '(' {
					depth++
				} else if body[j] == ')' {
					depth--
				}
				if depth > 0 {
					j++
				}
			}
			if j >= len(body) {
				b.WriteByte(c)
				i++
				continue
			}
			inner := body[i+2 : j]
			if out, err := ip.runSubstText(inner); err == nil {
				b.WriteString(out)
			}
			i = j + 1

		case body[i+1] == '{':
			j := strings.IndexByte(body[i+2:], '}')
			if j < 0 {
				b.WriteByte(c)
				i++
				continue
			}
			name := body[i+2 : i+2+j]
			if v, ok := ip.stack.Lookup(name); ok {
				b.WriteString(v.AsScalar())
			}
			i = i + 2 + j + 1

		case isNameStart(body[i+1]):
			j := i + 1
			for j < len(body) && isNameByte(body[j]) {
				j++
			}
			name := body[i+1 : j]
			if v, ok := ip.stack.Lookup(name); ok {
				b.WriteString(v.AsScalar())
			}
			i = j

		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String()
}

func (ip *Interp) runSubstText(src string) (string, error) {
	script, err := parser.Parse(src, "<heredoc>")
	if err != nil {
		return "", err
	}
	return ip.RunCapture(script)
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameByte(c byte) bool {
	return isNameStart(c) || (c >= '0' && c <= '9')
}

func (ip *Interp) expandRedirectTarget(w *ast.Word) (string, error) {
	s, err := ip.expander.ExpandAssignmentValue(w)
	if err != nil {
		return "", err
	}
	return vfs.ResolvePath(ip.cwd, s), nil
}
