package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pimo/src/block"
	"pimo/src/cerr"
	"pimo/src/compiler"
	"pimo/src/macro"
	"pimo/src/source"
	"pimo/src/util"

	"github.com/fatih/color"
)

var (
	redColor    = color.New(color.FgRed)
	yellowColor = color.New(color.FgYellow)
)

// run reads source code and drives the five pipeline stages.
func run(opt util.Options) error {
	if opt.Src != "" && filepath.Ext(opt.Src) != ".pim" {
		return fmt.Errorf("unexpected source file extension: %s, want .pim", filepath.Ext(opt.Src))
	}
	program := opt.Src
	if program == "" {
		program = "<stdin>"
	}

	src, err := util.ReadSource(opt)
	if err != nil {
		return fmt.Errorf("could not read source code: %s", err)
	}

	var stage string
	var stageStart time.Time
	report := func() {
		if opt.Verbose {
			fmt.Printf("%s: %s\n", stage, time.Since(stageStart))
		}
		stageStart = time.Now()
	}

	stage = "intern"
	start := time.Now()
	stageStart = start
	text, strs, err := source.Intern(program, src)
	if err != nil {
		return err
	}
	report()

	stage = "lex"
	lines, err := source.Lex(program, text, strs)
	if err != nil {
		return err
	}
	report()

	if opt.TokenStream {
		for _, ln := range lines {
			for _, tok := range ln.Tokens {
				fmt.Println(tok.String())
			}
		}
		return nil
	}

	stage = "block"
	root, err := block.Parse(program, lines)
	if err != nil {
		return err
	}
	block.PostProcess(root)
	report()

	stage = "macro"
	table, err := macro.CollectDirectives(program, lines)
	if err != nil {
		return err
	}
	if err := macro.Expand(program, root, table); err != nil {
		return err
	}
	report()

	stage = "compile"
	c := compiler.New(program)
	defer c.Dispose()
	mod, err := c.GenModule(root)
	if err != nil {
		return err
	}
	report()

	if opt.Verbose {
		fmt.Printf("total: %s\n", time.Since(start))
	}

	ir := mod.String()
	if opt.Verbose && opt.Out != "" {
		// Without -o the module already goes to stdout below.
		fmt.Print(ir)
	}
	return util.WriteOutput(opt, ir)
}

// printErr renders a *cerr.Error with the kind/location line in red and the source snippet and
// caret in yellow, so a failure's cause stands out from the line-pointer detail beneath it.
func printErr(err error) {
	cd, ok := err.(*cerr.Error)
	if !ok {
		redColor.Fprintf(os.Stderr, "error: %s\n", err)
		return
	}
	head, rest, found := strings.Cut(cd.Error(), "\n")
	redColor.Fprintln(os.Stderr, head)
	if found {
		yellowColor.Fprintln(os.Stderr, rest)
	}
}

func main() {
	opt, err := util.ParseArgs()
	if err != nil {
		redColor.Fprintf(os.Stderr, "argument error: %s\n", err)
		os.Exit(1)
	}

	if err := run(opt); err != nil {
		printErr(err)
		os.Exit(1)
	}
}
