package main

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"n2t.dev/toolchain/pkg/jack"

	"github.com/teris-io/cli"
)

var Description = strings.ReplaceAll(`
The Jack Analyzer parses programs written in the Jack language and emits the structural
parse tree of each class as XML, without compiling anything. It's a syntax-only tool meant
for grammar debugging and tooling that needs the parse tree rather than compiled output.
`, "\n", " ")

var JackAnalyzer = cli.New(Description).
	// 'AsOptional()' allows to have more than one input .jack file
	WithArg(cli.NewArg("inputs", "The source (.jack) files to be analyzed").
		AsOptional().WithType(cli.TypeString)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	if len(args) < 1 {
		fmt.Printf("ERROR: Not enough arguments provided, use --help\n")
		return -1
	}

	TUs := []string{}
	for _, input := range args {
		filepath.Walk(input, func(path string, info fs.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || filepath.Ext(path) != ".jack" {
				return nil // We recurse on dirs and ignore other filetypes
			}

			TUs = append(TUs, path)
			return nil
		})
	}

	status := 0
	for _, tu := range TUs {
		content, err := os.ReadFile(tu)
		if err != nil {
			fmt.Printf("ERROR: Unable to open input file: %s\n", err)
			status = -1
			continue
		}

		writer, err := jack.NewXMLWriter(bytes.NewReader(content))
		if err != nil {
			fmt.Printf("ERROR: Unable to tokenize input file: %s\n", err)
			status = -1
			continue
		}

		extension := path.Ext(tu)
		output, err := os.Create(fmt.Sprintf("%s.xml", strings.TrimSuffix(tu, extension)))
		if err != nil {
			fmt.Printf("ERROR: Unable to open output file: %s\n", err)
			status = -1
			continue
		}

		if err := writer.Write(output); err != nil {
			output.Close()
			fmt.Printf("ERROR: Unable to complete 'analysis' pass: %s\n", err)
			status = -1
			continue
		}
		output.Close()
	}

	return status
}

func main() { os.Exit(JackAnalyzer.Run(os.Args, os.Stdout)) }
