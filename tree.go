package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/datasourcer/datasourcer-go/internal/dstree"
)

func newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [qualifier...]",
		Short: "Print the declared datasource hierarchy",
		RunE:  runTree,
	}
}

func runTree(_ *cobra.Command, args []string) error {
	logger := buildLogger()

	roots, err := loadRoots(logger)
	if err != nil {
		return err
	}

	targets, resolveErr := resolveTargets(roots, args, logger)

	for _, target := range targets {
		printTree(os.Stdout, target)
	}

	return resolveErr
}

// printTree writes the subtree with two-space indentation, annotating
// leaves with their retrieval method.
func printTree(w io.Writer, n dstree.Node) {
	dstree.Apply(n, func(node dstree.Node, depth int) {
		fmt.Fprintf(w, "%s%s%s\n", strings.Repeat("  ", depth), node.Name(), nodeAnnotation(node))
	})
}

func nodeAnnotation(n dstree.Node) string {
	d, ok := n.(dstree.Downloadable)
	if !ok {
		return ""
	}

	switch d.Retrieve() {
	case dstree.RetrieveGET, dstree.RetrieveFTP:
		if _, remote := n.(*dstree.RemoteCollection); remote {
			return fmt.Sprintf(" [remote %s]", d.Retrieve())
		}

		return fmt.Sprintf(" [%s]", d.Retrieve())
	case dstree.RetrieveManual:
		return " [manual]"
	default:
		return ""
	}
}
