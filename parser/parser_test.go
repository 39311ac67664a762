package parser

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vercel-labs/just-bash/ast"
)

// flattenScript reduces a parsed Script to a flat list of structural
// tokens, the same technique as diffing an event stream rather than a
// tree: each entry is cheap to compare and a mismatch highlights exactly
// which node in the sequence diverged.
func flattenScript(s *ast.Script) []string {
	var out []string
	for _, l := range s.Lists {
		flattenList(l, &out)
	}
	return out
}

func flattenList(l *ast.List, out *[]string) {
	*out = append(*out, "List")
	for i, pl := range l.Pipelines {
		if i > 0 {
			*out = append(*out, fmt.Sprintf("LogOp:%d", l.Operators[i-1]))
		}
		flattenPipeline(pl, out)
	}
	if l.Async {
		*out = append(*out, "Async")
	}
}

func flattenPipeline(pl *ast.Pipeline, out *[]string) {
	*out = append(*out, "Pipeline")
	if pl.Negated {
		*out = append(*out, "Negated")
	}
	for i, c := range pl.Commands {
		if i > 0 {
			if pl.PipeStderr[i-1] {
				*out = append(*out, "PipeStderr")
			} else {
				*out = append(*out, "Pipe")
			}
		}
		flattenCommand(c, out)
	}
}

func flattenCommand(c ast.Command, out *[]string) {
	switch cmd := c.(type) {
	case *ast.SimpleCommand:
		*out = append(*out, "SimpleCommand:"+cmd.String())
		flattenRedirects(cmd.Redirects, out)
	case *ast.If:
		*out = append(*out, "If")
		for _, cond := range cmd.Conds {
			flattenList(cond, out)
		}
		for _, b := range cmd.Blocks {
			for _, l := range b.Lists {
				flattenList(l, out)
			}
		}
		flattenRedirects(cmd.Redirects, out)
	case *ast.While:
		kind := "While"
		if cmd.Until {
			kind = "Until"
		}
		*out = append(*out, kind)
		flattenList(cmd.Cond, out)
		for _, l := range cmd.Body.Lists {
			flattenList(l, out)
		}
		flattenRedirects(cmd.Redirects, out)
	case *ast.For:
		*out = append(*out, fmt.Sprintf("For:%s:hasIn=%v", cmd.Var, cmd.HasIn))
		for _, l := range cmd.Body.Lists {
			flattenList(l, out)
		}
		flattenRedirects(cmd.Redirects, out)
	case *ast.Group:
		*out = append(*out, "Group")
		for _, l := range cmd.Body.Lists {
			flattenList(l, out)
		}
		flattenRedirects(cmd.Redirects, out)
	case *ast.Subshell:
		*out = append(*out, "Subshell")
		for _, l := range cmd.Body.Lists {
			flattenList(l, out)
		}
		flattenRedirects(cmd.Redirects, out)
	default:
		*out = append(*out, fmt.Sprintf("%T", c))
	}
}

func flattenRedirects(redirects []*ast.Redirect, out *[]string) {
	for _, r := range redirects {
		*out = append(*out, fmt.Sprintf("Redirect:kind=%d:fd=%d", r.Kind, r.Fd))
	}
}

func TestParseScriptStructure(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "simple pipeline",
			input: "echo hello | wc -l",
			want: []string{
				"List", "Pipeline", "SimpleCommand:echo hello", "Pipe", "SimpleCommand:wc -l",
			},
		},
		{
			name:  "and-or chain",
			input: "false && echo x || echo y",
			want: []string{
				"List", "Pipeline", "SimpleCommand:false",
				"LogOp:0", "Pipeline", "SimpleCommand:echo x",
				"LogOp:1", "Pipeline", "SimpleCommand:echo y",
			},
		},
		{
			name:  "for loop",
			input: "for i in 1 2 3; do echo $i; done",
			want: []string{
				"List", "Pipeline", "For:i:hasIn=true",
				"List", "Pipeline", "SimpleCommand:echo $i",
			},
		},
		{
			name:  "while redirected from file",
			input: "while read -r line; do echo $line; done < in.txt",
			want: []string{
				"List", "Pipeline", "While",
				"List", "Pipeline", "SimpleCommand:read -r line",
				"List", "Pipeline", "SimpleCommand:echo $line",
				"Redirect:kind=0:fd=-1",
			},
		},
		{
			name:  "group redirected to file",
			input: "{ echo a; echo b; } > out.txt",
			want: []string{
				"List", "Pipeline", "Group",
				"List", "Pipeline", "SimpleCommand:echo a",
				"List", "Pipeline", "SimpleCommand:echo b",
				"Redirect:kind=1:fd=-1",
			},
		},
		{
			name:  "subshell",
			input: "( echo a; echo b )",
			want: []string{
				"List", "Pipeline", "Subshell",
				"List", "Pipeline", "SimpleCommand:echo a",
				"List", "Pipeline", "SimpleCommand:echo b",
			},
		},
		{
			name:  "async list",
			input: "sleep 1 &",
			want: []string{
				"List", "Pipeline", "SimpleCommand:sleep 1", "Async",
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script, err := Parse(tc.input, "<test>")
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.input, err)
			}
			got := flattenScript(script)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("structure mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParamExpansionWordText(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"default value", `echo "${v:-default}"`, `echo "${v:-default}"`},
		{"case upper all", `echo ${v^^}`, `echo ${v^^}`},
		{"array all", `echo ${a[@]}`, `echo ${a[@]}`},
		{"length", `echo ${#a[@]}`, `echo ${#a[@]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			script, err := Parse(tc.input, "<test>")
			if err != nil {
				t.Fatalf("Parse(%q): %v", tc.input, err)
			}
			cmd := script.Lists[0].Pipelines[0].Commands[0].(*ast.SimpleCommand)
			got := cmd.String()
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("word text mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseErrorReportsPosition(t *testing.T) {
	_, err := Parse("if true; then echo x", "<test>")
	if err == nil {
		t.Fatal("expected a parse error for an unterminated if")
	}
	var perr *Error
	if pe, ok := err.(*Error); ok {
		perr = pe
	} else {
		t.Fatalf("expected *Error, got %T", err)
	}
	if perr.Pos.Line == 0 {
		t.Errorf("expected a nonzero line number in %v", perr.Pos)
	}
}
