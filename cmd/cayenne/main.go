// Command cayenne translates qualifiers, validates data maps and generates
// DDL and Go classes from them.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/syssam/cayenne/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "cayenne:", err)
	}
	os.Exit(cli.GetExitCode(err))
}
