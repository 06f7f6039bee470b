package scriptexec

import "reflect"

// Symbols exposes the toolkit package to the yaegi interpreter, following
// the generated-symbol-table convention yaegi's own stdlib packages use
// (one reflect.Value per exported identifier, keyed by "import/path").
// This table is hand-written rather than code-generated, since scriptexec
// only exports a handful of types, matching the small, explicit allowlist
// style the teacher's executor already uses.
var Symbols = map[string]map[string]reflect.Value{
	"toolkit/toolkit": {
		"Context": reflect.ValueOf((*Context)(nil)),
	},
}
