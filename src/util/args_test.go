package util

import (
	"os"
	"testing"
)

func withArgs(args []string, fn func()) {
	old := os.Args
	defer func() { os.Args = old }()
	os.Args = append([]string{"pimoc"}, args...)
	fn()
}

func TestParseArgsSourceOnly(t *testing.T) {
	var opt Options
	var err error
	withArgs([]string{"main.pim"}, func() {
		opt, err = ParseArgs()
	})
	if err != nil {
		t.Fatalf("ParseArgs: %s", err)
	}
	if opt.Src != "main.pim" {
		t.Errorf("opt.Src = %q, want main.pim", opt.Src)
	}
}

func TestParseArgsOutputFlag(t *testing.T) {
	var opt Options
	var err error
	withArgs([]string{"-o", "out.ll", "main.pim"}, func() {
		opt, err = ParseArgs()
	})
	if err != nil {
		t.Fatalf("ParseArgs: %s", err)
	}
	if opt.Out != "out.ll" || opt.Src != "main.pim" {
		t.Errorf("opt = %+v, want Out=out.ll Src=main.pim", opt)
	}
}

func TestParseArgsTokenStreamAndVerbose(t *testing.T) {
	var opt Options
	var err error
	withArgs([]string{"-ts", "-vb", "main.pim"}, func() {
		opt, err = ParseArgs()
	})
	if err != nil {
		t.Fatalf("ParseArgs: %s", err)
	}
	if !opt.TokenStream || !opt.Verbose {
		t.Errorf("opt = %+v, want TokenStream and Verbose both set", opt)
	}
}

func TestParseArgsMissingOutputArgument(t *testing.T) {
	withArgs([]string{"-o"}, func() {
		if _, err := ParseArgs(); err == nil {
			t.Error("expected error for -o with no argument")
		}
	})
}

func TestParseArgsUnknownFlagErrors(t *testing.T) {
	withArgs([]string{"-bogus"}, func() {
		if _, err := ParseArgs(); err == nil {
			t.Error("expected error for unknown flag")
		}
	})
}

func TestParseArgsNoArgumentsReturnsZeroValue(t *testing.T) {
	var opt Options
	var err error
	withArgs([]string{}, func() {
		opt, err = ParseArgs()
	})
	if err != nil {
		t.Fatalf("ParseArgs: %s", err)
	}
	if opt.Src != "" || opt.Out != "" || opt.Verbose || opt.TokenStream {
		t.Errorf("opt = %+v, want zero value", opt)
	}
}
