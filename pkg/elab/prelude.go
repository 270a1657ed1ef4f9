// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2023-2026 Nicholas R. Perez

package elab

// PreludeModule is the module name the prelude is stored under.
const PreludeModule = "Prelude"

// DefaultPrelude is compiled into the store on startup unless WithNoStdlib
// is given. Modules opt in with `import Prelude`.
const DefaultPrelude = `
def zero : Nat := 0
def one : Nat := 1
def two : Nat := one + one
def empty : String := ""

namespace Bool
def yes : Bool := true
def no : Bool := false
end Bool
`
