/* SPDX-License-Identifier: GPL-3.0-or-later
 *
 * mediacli
 * Copyright (C) 2026 the mediacore authors
 *
 * This file is part of mediacore.
 *
 * mediacore is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * mediacore is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with mediacore.  If not, see <https://www.gnu.org/licenses/>.
 */
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version string
var build string

func main() {
	root := &cobra.Command{
		Use:     "mediacli",
		Short:   "Probe and scrub media through the Timeline Media Buffer",
		Version: fmt.Sprintf("%s (build %s)", version, build),
	}

	root.AddCommand(newProbeCmd())
	root.AddCommand(newScrubCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
