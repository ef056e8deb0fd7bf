// Command gen-version writes a Go file recording the git version of the
// working tree.  It is run through go:generate in the server package.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"
)

const usage = `gen-version writes git-derived version info as Go source.

Usage: gen-version [-pkg server] -o version_git.go

      -o          =string   Output file (required)
      -pkg        =string   Package name of the generated file
      -h, -help   (flag)    Show help message
`

var versionTemplate = template.Must(template.New("version").Parse(`// Code generated by gen-version. DO NOT EDIT.

package {{.Package}}

func init() {
	gitVersion = {{printf "%q" .Version}}
}
`))

// gitDescribe returns the nearest tag plus commit suffix, or "notag" when
// the tree has no tags.
func gitDescribe() (string, error) {
	gitPath, err := exec.LookPath("git")
	if err != nil {
		return "", fmt.Errorf("unable to find git command: %v", err)
	}
	out, err := exec.Command(gitPath, "describe", "--abbrev=5", "--tags", "--dirty").Output()
	if err != nil {
		return "notag", nil
	}
	return strings.TrimSpace(string(out)), nil
}

func main() {
	var output, pkg string
	var help bool
	flag.StringVar(&output, "o", "", "")
	flag.StringVar(&pkg, "pkg", "server", "")
	flag.BoolVar(&help, "help", false, "")
	flag.BoolVar(&help, "h", false, "")
	flag.Usage = func() { fmt.Print(usage) }
	flag.Parse()

	if help {
		flag.Usage()
		return
	}
	if !strings.HasSuffix(output, ".go") {
		fmt.Println("An output Go file is required: -o version_git.go")
		os.Exit(1)
	}

	version, err := gitDescribe()
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
	var buf bytes.Buffer
	data := struct{ Package, Version string }{pkg, version}
	if err := versionTemplate.Execute(&buf, data); err != nil {
		fmt.Printf("Error generating version code: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(output, buf.Bytes(), 0644); err != nil {
		fmt.Printf("Error saving %s: %v\n", output, err)
		os.Exit(1)
	}
}
