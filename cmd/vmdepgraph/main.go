// Command vmdepgraph generates a Graphviz DOT description of this
// module's own internal package dependency graph, the same technique
// misc/depgraph used for the whole module graph, narrowed to one
// module's packages so the picture stays small enough to read.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
)

type pkgInfo struct {
	ImportPath string
	Imports    []string
}

func main() {
	cmd := exec.Command("go", "list", "-json", "./...")
	output, err := cmd.Output()
	if err != nil {
		panic(err)
	}

	fmt.Println("digraph deps {")
	dec := json.NewDecoder(bytes.NewReader(output))
	for {
		var p pkgInfo
		if err := dec.Decode(&p); err != nil {
			break
		}
		for _, imp := range p.Imports {
			if !strings.HasPrefix(imp, "vm161/") {
				continue
			}
			fmt.Printf("    %q -> %q;\n", p.ImportPath, imp)
		}
	}
	fmt.Println("}")
}
