// Package argsanitize implements the ArgSanitizer contract of spec.md
// §4.2: turning a raw compile command into an argument vector the AST
// library will accept, as a pure function with no shared state.
package argsanitize

import (
	"path/filepath"
	"strings"
)

// driverOnlyFlags are GCC-only flags the AST library's driver rejects
// outright.
var driverOnlyFlags = map[string]bool{
	"-fconserve-stack":               true,
	"-fno-var-tracking-assignments": true,
	"-fmerge-all-constants":          true,
}

// driverOnlyPrefixes are GCC-only flag families identified by prefix.
var driverOnlyPrefixes = []string{"-mabi=", "-falign-kernels"}

// depEmissionFlags are dependency-emission flags with no operand.
var depEmissionFlags = map[string]bool{
	"-MD": true, "-MMD": true, "-MP": true, "-MT": true,
}

// depEmissionPrefixes catch the -Wp,-MD.../-Wp,-MMD... forms.
var depEmissionPrefixes = []string{"-Wp,-MD", "-Wp,-MMD"}

// appendedFlags are always appended after sanitizing raw args, in order.
var appendedFlags = []string{
	"-fsyntax-only",
	"-ferror-limit=0",
	"-Wno-error",
	"-Wno-strict-prototypes",
	"-Wno-implicit-int",
	"-Wno-unknown-warning-option",
}

// Sanitize turns a raw compiler invocation into the argument vector the
// AST library should parse with. rawArgs is the full argv including the
// compiler path at index 0 (rawArgs[1:] is what gets filtered, matching
// spec.md §4.2's "applied in order over raw_args[1..]"). sourceFile is
// used to drop the redundant positional source argument; builtinIncludeDir,
// when non-empty, is appended as the trailing -isystem directory.
func Sanitize(compilerPath string, rawArgs []string, sourceFile, workingDirectory, builtinIncludeDir string) []string {
	sourceBasename := filepath.Base(sourceFile)

	var out []string
	skipNext := false

	body := rawArgs
	if len(body) > 0 {
		body = body[1:]
	}

	for i := 0; i < len(body); i++ {
		arg := body[i]
		if skipNext {
			skipNext = false
			continue
		}

		// 1. Drop -o and its operand.
		if arg == "-o" {
			skipNext = true
			continue
		}

		// 2. Drop -c, -S.
		if arg == "-c" || arg == "-S" {
			continue
		}

		// 3. Drop any operand whose basename equals the source file basename.
		if filepath.Base(arg) == sourceBasename {
			continue
		}

		// 4. Drop known driver-only flags.
		if driverOnlyFlags[arg] {
			continue
		}
		if hasAnyPrefix(arg, driverOnlyPrefixes) {
			continue
		}

		// 5. Drop dependency-emission flags.
		if depEmissionFlags[arg] {
			continue
		}
		if hasAnyPrefix(arg, depEmissionPrefixes) {
			continue
		}
		if arg == "-MF" {
			skipNext = true
			continue
		}

		// 6. Drop -Werror=... forms.
		if strings.HasPrefix(arg, "-Werror=") {
			continue
		}

		out = append(out, arg)
	}

	out = append(out, appendedFlags...)

	if workingDirectory != "" {
		out = append(out, "-working-directory", workingDirectory)
	}

	out = append(out, targetFlags(compilerPath)...)

	if builtinIncludeDir != "" {
		out = append(out, "-isystem", builtinIncludeDir)
	}

	return out
}

// targetFlags injects a cross-compile target when the compiler path names
// an aarch64/arm toolchain, per spec.md §4.2.
func targetFlags(compilerPath string) []string {
	switch {
	case strings.Contains(compilerPath, "aarch64"), strings.Contains(compilerPath, "arm64"):
		return []string{"--target=aarch64-linux-gnu"}
	case strings.Contains(compilerPath, "arm"):
		return []string{"--target=arm-linux-gnueabihf"}
	default:
		return nil
	}
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
