package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/rembrandb/rembrandb/internal/repl"
	"github.com/rembrandb/rembrandb/internal/table"
)

const version = "0.0.0.1"

func main() {
	opts := repl.Options{
		PrintResult: true,
		DumpIR:      true,
	}
	executeStatement := false
	statement := ""
	dbFile := ""

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--help":
			showUsage()
			return
		case arg == "-opt":
			fmt.Println("Optimizations enabled.")
			opts.Optimize = true
		case arg == "-no-print":
			fmt.Println("Printing output disabled.")
			opts.PrintResult = false
		case arg == "-no-llvm":
			fmt.Println("Printing LLVM disabled.")
			opts.DumpIR = false
		case arg == "-s":
			executeStatement = true
		case arg == "-db":
			if i+1 >= len(args) {
				fmt.Println("Option -db requires a file argument.")
				os.Exit(1)
			}
			i++
			dbFile = args[i]
		case executeStatement && statement == "":
			statement = arg
		default:
			fmt.Printf("Unrecognized command line option %q.\n", arg)
			os.Exit(1)
		}
	}

	if !executeStatement {
		fmt.Printf("# RembranDB server v%s\n", version)
		fmt.Println("# Serving table \"demo\", with no support for multithreading")
		fmt.Println("# Did not find any available memory (didn't look for any either)")
		fmt.Println("# Not listening to any connection requests.")
		fmt.Println("# RembranDB/SQL module loaded")
	}

	catalog := table.NewCatalog()
	catalog.LoadDemo()
	if dbFile != "" {
		if err := catalog.LoadSQLite(dbFile); err != nil {
			logrus.Fatalf("failed to load %s: %v", dbFile, err)
		}
	}

	shell := repl.NewShell(catalog, opts, os.Stdin, os.Stdout, os.Stderr)
	if executeStatement {
		shell.Exec(statement)
		return
	}
	shell.Start()
}

func showUsage() {
	fmt.Println("RembranDB Options.")
	fmt.Println("  -opt              Enable optimizations.")
	fmt.Println("  -no-print         Do not print query results.")
	fmt.Println("  -no-llvm          Do not print LLVM instructions.")
	fmt.Println("  -s \"stmnt\"        Execute \"stmnt\" and exit.")
	fmt.Println("  -db file          Load tables from a SQLite database file.")
}
