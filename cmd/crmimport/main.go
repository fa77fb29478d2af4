// Command crmimport migrates spreadsheet extracts into Salesforce and
// serves the recorded run history.
package main

func main() {
	Execute()
}
