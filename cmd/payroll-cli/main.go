package main

import "payroll-core/cmd/payroll-cli/cmd"

func main() {
	cmd.Execute()
}
