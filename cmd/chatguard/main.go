// Command chatguard moderates chat messages from the command line or over HTTP.
package main

import (
	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"github.com/heibot/chatguard/internal/cli"
)

func main() {
	cli.Execute()
}
