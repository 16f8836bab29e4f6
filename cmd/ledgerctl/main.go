// Command ledgerctl is the operator CLI: run the API, migrate the schema,
// refresh aging, run integrity checks and print reports.
package main

func main() {
	Execute()
}
