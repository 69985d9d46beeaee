/*
Package cloudarmor reads and writes the Cloud Armor rule inventory CSV.

The inventory is a spreadsheet export with one row per security-policy rule.
Rows are matched by header name, so column order does not matter and unknown
columns are ignored:

	Project Name, Policy Name, Target Count, Target List (Pipe Separated),
	Adaptive Protection, Log Level, JSON Parsing, Rules active or in preview,
	Status, Match Expression, Rule Description, Priority

Parse a local export:

	rules, err := cloudarmor.ParseFile("inventory.csv")

Rewrite a Google Sheets link to its CSV export form before fetching it:

	csvURL := cloudarmor.ToCSVURL("https://docs.google.com/spreadsheets/d/e/XYZ/pubhtml")

Write the ledger back out:

	err := cloudarmor.Write(w, rules, cloudarmor.LedgerFields)
*/
package cloudarmor
