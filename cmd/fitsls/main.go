// fitsls lists the structure of FITS files.
//
// Usage:
//
//	fitsls [flags] <file>...
//
// For each file it prints one line per HDU: index, type, dimensions, and the
// extension name when present. With --header it dumps every header card
// instead.
//
// Flags:
//
//	-H, --header        Dump all header cards instead of the summary
//	-C, --columns       List table columns
//	-n, --hdu <index>   Restrict output to one HDU (1-based)
//	-v, --verbose       Enable debug logging
//	    --config <path> Explicit config file
package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/obsarchive/fits"
)

func main() {
	err := run(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "fitsls: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("fitsls", flag.ContinueOnError)

	dumpHeader := flags.BoolP("header", "H", false, "dump all header cards")
	listColumns := flags.BoolP("columns", "C", false, "list table columns")
	hduIndex := flags.IntP("hdu", "n", 0, "restrict output to one HDU (1-based)")
	verbose := flags.BoolP("verbose", "v", false, "enable debug logging")
	configPath := flags.String("config", "", "explicit config file")

	err := flags.Parse(args)
	if err != nil {
		return err
	}

	if flags.NArg() == 0 {
		return fmt.Errorf("usage: fitsls [flags] <file>...")
	}

	cfg, err := LoadConfig(*configPath, os.Environ())
	if err != nil {
		return err
	}

	logger := zap.NewNop()
	if *verbose || cfg.Verbose {
		logger, err = zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()
	}

	for _, path := range flags.Args() {
		err := listFile(path, *dumpHeader || cfg.DumpHeader, *listColumns, *hduIndex, logger)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}

	return nil
}

func listFile(path string, dumpHeader, listColumns bool, only int, logger *zap.Logger) error {
	sess, err := fits.Open(path, fits.ReadOnly, fits.WithLogger(logger))
	if err != nil {
		return err
	}
	defer sess.Close()

	n, err := sess.NumHDUs()
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d HDUs\n", path, n)

	for i := 1; i <= n; i++ {
		if only != 0 && i != only {
			continue
		}

		hdu, err := sess.HDU(i)
		if err != nil {
			return err
		}

		if dumpHeader {
			err = printHeader(hdu)
		} else {
			err = printSummary(hdu)
		}

		if err != nil {
			return err
		}

		if listColumns {
			err = printColumns(hdu)
			if err != nil {
				return err
			}
		}
	}

	return nil
}

func printColumns(hdu fits.HDU) error {
	var (
		names []string
		err   error
	)

	switch h := hdu.(type) {
	case *fits.BinTableHDU:
		names, err = h.ColumnNames()
	case *fits.AsciiTableHDU:
		names, err = h.ColumnNames()
	default:
		return nil
	}

	if err != nil {
		return err
	}

	for i, name := range names {
		fmt.Printf("       %3d  %s\n", i, name)
	}

	return nil
}

func printSummary(hdu fits.HDU) error {
	desc := ""

	switch h := hdu.(type) {
	case *fits.ImageHDU:
		shape, err := h.Shape()
		if err != nil {
			return err
		}

		dt, err := h.DataType()
		if err != nil {
			return err
		}

		if len(shape) == 0 {
			desc = "header only"
		} else {
			dims := make([]string, len(shape))
			for i, d := range shape {
				dims[i] = fmt.Sprint(d)
			}

			desc = fmt.Sprintf("%s %s", strings.Join(dims, "x"), dt)
		}

	case *fits.BinTableHDU:
		desc = tableSummary(h)

	case *fits.AsciiTableHDU:
		desc = tableSummary(h)
	}

	name := ""
	if v, err := hdu.ReadKey("EXTNAME"); err == nil {
		if s, ok := v.AsString(); ok {
			name = "  " + strings.TrimSpace(s)
		}
	}

	fmt.Printf("  %3d  %-9s %s%s\n", hdu.Index(), hdu.Type(), desc, name)

	return nil
}

// tabular is the shared read surface of both table handle types.
type tabular interface {
	NumRows() (int64, error)
	NumColumns() (int, error)
}

func tableSummary(t tabular) string {
	rows, err := t.NumRows()
	if err != nil {
		return "?"
	}

	cols, err := t.NumColumns()
	if err != nil {
		return "?"
	}

	return fmt.Sprintf("%d rows x %d cols", rows, cols)
}

func printHeader(hdu fits.HDU) error {
	hdr, err := hdu.Header()
	if err != nil {
		return err
	}

	fmt.Printf("  --- HDU %d (%s) ---\n", hdu.Index(), hdu.Type())

	hdr.Cards()(func(c fits.Card) bool {
		line := fmt.Sprintf("%-8s= %s", c.Key, c.Value.String())
		if c.Comment != "" {
			line += " / " + c.Comment
		}

		fmt.Println("  " + line)
		return true
	})

	return nil
}
