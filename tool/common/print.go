/*
Copyright 2024 Gravitational, Inc.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package common

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gravitational/trace"
)

// PrintError prints the red error message to the console
func PrintError(err error) {
	color.Red("[ERROR]: %v\n", trace.UserMessage(err))
}

// PrintHeader formats the provided string as a header and prints it to the console
func PrintHeader(val string) {
	fmt.Printf("\n[%v]\n%v\n", val, strings.Repeat("-", len(val)+2))
}

// PrintCheck prints the outcome of a boolean check in green or red
func PrintCheck(name string, ok bool) {
	if ok {
		fmt.Printf("%v:\t%v\n", name, color.GreenString("ok"))
		return
	}
	fmt.Printf("%v:\t%v\n", name, color.RedString("failed"))
}
