package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/skarsol/rscd/internal/syntax"
)

// rsctree parses a module and dumps its tree with spans, for debugging the
// locator and the binder.
func main() {
	args := os.Args
	var src, name string
	if len(args) == 1 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintln(os.Stderr, "ERROR: Cannot read stdin")
			os.Exit(1)
		}
		src = string(data)
		name = "<stdin>"
	} else {
		data, err := os.ReadFile(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
			os.Exit(1)
		}
		src = string(data)
		name = args[1]
	}

	tree, err := syntax.Parse(src, name)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		os.Exit(1)
	}
	dump(tree, 0)
}

func dump(n syntax.Node, depth int) {
	sp := n.Span()
	label := fmt.Sprintf("%T", n)
	label = label[strings.LastIndex(label, ".")+1:]
	fmt.Printf("%s%s %d:%d..%d:%d\n", strings.Repeat("  ", depth), label,
		sp.Rng.Start.Line, sp.Rng.Start.Col, sp.Rng.End.Line, sp.Rng.End.Col)
	dumpChildren(n, depth+1)
}

func dumpChildren(n syntax.Node, depth int) {
	syntax.Walk(n, func(c syntax.Node) bool {
		if c == n {
			return true
		}
		dump(c, depth)
		return false
	})
}
