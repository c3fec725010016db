// Command idxetl fetches the Indonesia Stock Exchange's daily ">5%
// shareholder" disclosure, extracts its ownership table, and writes a
// date-partitioned CSV dataset to object storage. See cmd for the
// available subcommands.
package main

import "github.com/adiwardana/idx-shareholder-etl/cmd"

func main() {
	cmd.Execute()
}
