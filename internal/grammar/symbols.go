package grammar

import (
	"fmt"

	"tsforge/internal/manifest"
)

// collidingSymbols are the file-scope identifiers that generated parsers
// and the runtime helpers of some grammar revisions define without
// internal linkage. Every grammar's copy is renamed with the grammar
// identifier so hundreds of parsers coexist in one combined archive.
var collidingSymbols = []string{
	"ts_external_scanner_states",
	"ts_lex",
	"ts_lex_keywords",
	"ts_lex_modes",
	"ts_non_terminal_alias_map",
	"ts_parse_actions",
	"ts_parse_table",
	"ts_primary_state_ids",
	"ts_small_parse_table",
	"ts_small_parse_table_map",
	"ts_symbol_metadata",
	"ts_symbol_names",
}

// RenameDefines renders the preprocessor defines isolating one grammar's
// internal symbols, e.g. -Dts_lex=ts_lex_javascript.
func RenameDefines(g manifest.Grammar) []string {
	id := g.Identifier()
	defines := make([]string, 0, len(collidingSymbols))
	for _, sym := range collidingSymbols {
		defines = append(defines, fmt.Sprintf("-D%s=%s_%s", sym, sym, id))
	}
	return defines
}
