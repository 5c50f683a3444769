// SPDX-License-Identifier: MPL-2.0

package main

import cmd "github.com/tsjunit/tsjunit/cmd/tsjunit"

func main() {
	cmd.Execute()
}
