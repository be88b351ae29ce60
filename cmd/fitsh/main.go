// fitsh is an interactive shell for inspecting and editing FITS files.
//
// Usage:
//
//	fitsh [-m mode] <file>
//
// The mode is one of r, r+, rw, or w (default r+ when the file exists,
// rw otherwise).
//
// Commands (in REPL):
//
//	ls                               List HDUs
//	hdr <hdu>                        Dump the header of one HDU
//	get <hdu> <key>                  Read one header value
//	set <hdu> <key> <value> [cmt]    Write one header card
//	cols <hdu>                       List table columns
//	col <hdu> <name>                 Print one table column
//	del <hdu>                        Delete an extension
//	append <type> [dim ...]          Append a zero-filled image HDU
//	flush                            Sync pending writes
//	help                             Show this help
//	exit / quit / q                  Exit
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/obsarchive/fits"
)

func main() {
	err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitsh: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("fitsh", flag.ContinueOnError)
	modeStr := flags.StringP("mode", "m", "", "open mode: r, r+, rw, or w")

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	if flags.NArg() != 1 {
		return errors.New("usage: fitsh [-m mode] <file>")
	}

	path := flags.Arg(0)

	mode := fits.ReadWrite
	if *modeStr != "" {
		mode, err = fits.ParseMode(*modeStr)
		if err != nil {
			return err
		}
	} else if _, statErr := os.Stat(path); statErr != nil {
		mode = fits.ReadWriteCreate
	}

	sess, err := fits.Open(path, mode)
	if err != nil {
		return err
	}
	defer sess.Close()

	return repl(sess)
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".fitsh_history")
	}

	return filepath.Join(home, ".fitsh_history")
}

func repl(sess *fits.Session) error {
	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)

	commands := []string{
		"ls", "hdr", "get", "set", "cols", "col", "del",
		"append", "flush", "help", "exit", "quit",
	}

	line.SetCompleter(func(prefix string) []string {
		var out []string
		for _, c := range commands {
			if strings.HasPrefix(c, strings.ToLower(prefix)) {
				out = append(out, c)
			}
		}

		return out
	})

	histFile := historyPath()
	if f, err := os.Open(histFile); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}

	defer func() {
		if f, err := os.Create(histFile); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Printf("fitsh: %s (%s). Type 'help' for commands.\n", sess.Path(), sess.Mode())

	for {
		input, err := line.Prompt("fits> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}

			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		line.AppendHistory(input)

		fields := strings.Fields(input)
		cmd, rest := fields[0], fields[1:]

		if cmd == "exit" || cmd == "quit" || cmd == "q" {
			return nil
		}

		err = dispatch(sess, cmd, rest)
		if err != nil {
			fmt.Printf("error: %v\n", err)
		}
	}
}

func dispatch(sess *fits.Session, cmd string, args []string) error {
	switch cmd {
	case "ls":
		return cmdList(sess)
	case "hdr":
		return withHDU(sess, args, 0, cmdHeader)
	case "get":
		return withHDU(sess, args, 1, cmdGet)
	case "set":
		return withHDU(sess, args, 2, cmdSet)
	case "cols":
		return withHDU(sess, args, 0, cmdCols)
	case "col":
		return withHDU(sess, args, 1, cmdCol)
	case "del":
		return withHDU(sess, args, 0, nil)
	case "append":
		return cmdAppend(sess, args)
	case "flush":
		return sess.Flush()
	case "help":
		printHelp()

		return nil
	default:
		return fmt.Errorf("unknown command %q; try 'help'", cmd)
	}
}

// withHDU resolves the leading HDU index argument and checks the remaining
// argument count before handing off.
func withHDU(sess *fits.Session, args []string, extra int, fn func(fits.HDU, []string) error) error {
	if len(args) < 1+extra {
		return errors.New("missing arguments; try 'help'")
	}

	idx, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("bad HDU index %q", args[0])
	}

	// del mutates the session, not the handle.
	if fn == nil {
		return sess.DeleteHDU(idx)
	}

	hdu, err := sess.HDU(idx)
	if err != nil {
		return err
	}

	return fn(hdu, args[1:])
}

func cmdList(sess *fits.Session) error {
	n, err := sess.NumHDUs()
	if err != nil {
		return err
	}

	for i := 1; i <= n; i++ {
		hdu, err := sess.HDU(i)
		if err != nil {
			return err
		}

		name := ""
		if v, err := hdu.ReadKey("EXTNAME"); err == nil {
			if s, ok := v.AsString(); ok {
				name = "  " + strings.TrimSpace(s)
			}
		}

		fmt.Printf("%3d  %-9s%s\n", i, hdu.Type(), name)
	}

	return nil
}

func cmdHeader(hdu fits.HDU, _ []string) error {
	hdr, err := hdu.Header()
	if err != nil {
		return err
	}

	hdr.Cards()(func(c fits.Card) bool {
		line := fmt.Sprintf("%-8s= %s", c.Key, c.Value.String())
		if c.Comment != "" {
			line += " / " + c.Comment
		}

		fmt.Println(line)
		return true
	})

	return nil
}

func cmdGet(hdu fits.HDU, args []string) error {
	v, err := hdu.ReadKey(args[0])
	if err != nil {
		return err
	}

	fmt.Println(v.String())

	return nil
}

func cmdSet(hdu fits.HDU, args []string) error {
	key := args[0]

	// Accept FITS text form (quoted strings, T/F, numbers); anything that
	// does not parse is taken as a bare string.
	v, err := fits.ParseValue(args[1])
	if err != nil {
		v = fits.StringValue(args[1])
	}

	comment := ""
	if len(args) > 2 {
		comment = strings.Join(args[2:], " ")
	}

	return hdu.WriteKey(key, v, comment)
}

func cmdCols(hdu fits.HDU, _ []string) error {
	names, err := columnNames(hdu)
	if err != nil {
		return err
	}

	for i, name := range names {
		fmt.Printf("%3d  %s\n", i, name)
	}

	return nil
}

func cmdCol(hdu fits.HDU, args []string) error {
	var (
		col fits.Column
		err error
	)

	switch h := hdu.(type) {
	case *fits.BinTableHDU:
		col, err = h.Column(args[0])
	case *fits.AsciiTableHDU:
		col, err = h.Column(args[0])
	default:
		return fmt.Errorf("HDU %d is not a table", hdu.Index())
	}

	if err != nil {
		return err
	}

	fmt.Printf("%s (repeat %d): %v\n", col.Name, col.Repeat, col.Data)

	return nil
}

func columnNames(hdu fits.HDU) ([]string, error) {
	switch h := hdu.(type) {
	case *fits.BinTableHDU:
		return h.ColumnNames()
	case *fits.AsciiTableHDU:
		return h.ColumnNames()
	default:
		return nil, fmt.Errorf("HDU %d is not a table", hdu.Index())
	}
}

func cmdAppend(sess *fits.Session, args []string) error {
	if len(args) < 1 {
		return errors.New("usage: append <type> [dim ...]")
	}

	dt, err := parseDataType(args[0])
	if err != nil {
		return err
	}

	shape := make([]int, 0, len(args)-1)
	for _, a := range args[1:] {
		d, err := strconv.Atoi(a)
		if err != nil || d <= 0 {
			return fmt.Errorf("bad dimension %q", a)
		}

		shape = append(shape, d)
	}

	img, err := sess.AppendImage(dt, shape)
	if err != nil {
		return err
	}

	fmt.Printf("appended HDU %d\n", img.Index())

	return nil
}

func parseDataType(s string) (fits.DataType, error) {
	types := map[string]fits.DataType{
		"uint8": fits.Uint8, "int8": fits.Int8,
		"int16": fits.Int16, "uint16": fits.Uint16,
		"int32": fits.Int32, "uint32": fits.Uint32,
		"int64": fits.Int64, "uint64": fits.Uint64,
		"float32": fits.Float32, "float64": fits.Float64,
	}

	dt, ok := types[strings.ToLower(s)]
	if !ok {
		return 0, fmt.Errorf("unknown data type %q", s)
	}

	return dt, nil
}

func printHelp() {
	fmt.Print(`Commands:
  ls                              List HDUs
  hdr <hdu>                       Dump the header of one HDU
  get <hdu> <key>                 Read one header value
  set <hdu> <key> <value> [cmt]   Write one header card
  cols <hdu>                      List table columns
  col <hdu> <name>                Print one table column
  del <hdu>                       Delete an extension
  append <type> [dim ...]         Append a zero-filled image HDU
  flush                           Sync pending writes
  help                            Show this help
  exit / quit / q                 Exit
`)
}
