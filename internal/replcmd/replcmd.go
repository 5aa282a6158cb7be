// Package replcmd implements the notlox CLI driver: spec.md §6 defines
// exactly two behaviors (an interactive REPL with no arguments, or running a
// single source file named as the sole argument), mirrored here as the two
// `Cmd` verbs the teacher's reflection-based `buildCmds` dispatch expects.
package replcmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/mna/mainer"
	"github.com/mna/notlox/lang/vm"
)

const binName = "notlox"

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<path>]
       %[1]s -h|--help
       %[1]s -v|--version

Bytecode compiler and stack VM for the %[1]s scripting language.

With no <path>, starts an interactive read-eval-print loop. With a
<path>, compiles and runs that source file.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.
`, binName)
)

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	args  []string
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string)          { c.args = args }
func (c *Cmd) SetFlags(flags map[string]bool) {}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}
	if len(c.args) > 1 {
		return errors.New("at most one file path may be given")
	}

	commands := buildCmds(c)
	if len(c.args) == 0 {
		c.cmdFn = commands["repl"]
	} else {
		c.cmdFn = commands["run"]
	}
	if c.cmdFn == nil {
		return errors.New("no runnable command registered")
	}
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success
	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args); err != nil {
		return mainer.Failure
	}
	return mainer.Success
}

// Repl runs the interactive loop over stdio (spec.md §6: no arguments).
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return vm.Repl(stdio.Stdin, stdio.Stdout)
}

// Run compiles and executes the single file named in args (spec.md §6: one
// argument). Compile/runtime errors are printed to stderr and reported as a
// failing exit code, not panicked.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	path := args[0]
	src, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	m := vm.New()
	m.Stdout = stdio.Stdout
	if _, err := m.Interpret(string(src)); err != nil {
		fmt.Fprintln(stdio.Stderr, err)
		return err
	}
	return nil
}

// buildCmds mirrors the teacher's internal/maincmd reflection-based verb
// dispatch: any Cmd method shaped like (context.Context, mainer.Stdio,
// []string) error becomes a named command, keyed by lowercased method name.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}
		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
