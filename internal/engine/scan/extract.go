package scan

// Extraction is the per-file result of specifier and export scanning.
// Specifiers are raw, unresolved dependency strings in source order;
// Exports are declared exported symbol names. Both may contain duplicates,
// callers dedupe.
type Extraction struct {
	Specifiers []string
	Exports    []string
}

// WildcardExport marks a wildcard re-export whose symbol names are unknown.
const WildcardExport = "*"

// Extract scans source text for dependency specifiers (static imports,
// side-effect imports, dynamic imports, re-exports, wildcard re-exports,
// require calls) and exported symbol names.
//
// It is a hand-written scanner, not a parser: comments are blanked first in
// a string- and template-literal-aware pass, then a single keyword-driven
// pass reads the interesting statements. Anything it cannot make sense of
// is skipped.
func Extract(src string) Extraction {
	c := &cursor{src: stripComments(src)}
	var ext Extraction

	for !c.done() {
		word := c.nextIdent()
		switch word {
		case "import":
			ext.scanImport(c)
		case "export":
			ext.scanExport(c)
		case "require":
			ext.scanRequire(c)
		case "":
			return ext
		}
	}
	return ext
}

func (e *Extraction) scanImport(c *cursor) {
	c.skipSpace()
	switch {
	case c.peek() == '(':
		// Dynamic import: import('./x').
		c.advance()
		c.skipSpace()
		if spec, ok := c.readString(); ok {
			e.Specifiers = append(e.Specifiers, spec)
		}
	case c.peek() == '\'' || c.peek() == '"' || c.peek() == '`':
		// Side-effect import: import './x'.
		if spec, ok := c.readString(); ok {
			e.Specifiers = append(e.Specifiers, spec)
		}
	case c.peek() == '.':
		// import.meta, not a dependency.
	default:
		// Binding list, then "from '<spec>'". Bounded by statement end so a
		// malformed import cannot swallow the rest of the file.
		if spec, ok := c.readFromClause(); ok {
			e.Specifiers = append(e.Specifiers, spec)
		}
	}
}

func (e *Extraction) scanExport(c *cursor) {
	c.skipSpace()
	switch {
	case c.peek() == '*':
		// Wildcard re-export: export * [as ns] from './x'.
		c.advance()
		if spec, ok := c.readFromClause(); ok {
			e.Specifiers = append(e.Specifiers, spec)
			e.Exports = append(e.Exports, WildcardExport)
		}
	case c.peek() == '{':
		e.scanExportList(c)
	default:
		e.scanExportDeclaration(c)
	}
}

// scanExportList handles export { a, b as c } [from './x'].
func (e *Extraction) scanExportList(c *cursor) {
	c.advance() // consume '{'
	for !c.done() {
		c.skipSpace()
		if c.peek() == '}' {
			c.advance()
			break
		}
		name := c.nextIdentHere()
		if name == "" {
			c.advance()
			continue
		}
		c.skipSpace()
		if c.hasIdentHere("as") {
			c.nextIdentHere()
			c.skipSpace()
			name = c.nextIdentHere()
		}
		if name != "" {
			e.Exports = append(e.Exports, name)
		}
		c.skipSpace()
		if c.peek() == ',' {
			c.advance()
		}
	}
	if spec, ok := c.readFromClause(); ok {
		e.Specifiers = append(e.Specifiers, spec)
	}
}

// scanExportDeclaration handles export [default|const|let|var|function|
// class|async function|enum|interface|type|abstract class] <name>.
func (e *Extraction) scanExportDeclaration(c *cursor) {
	keyword := c.nextIdentHere()
	switch keyword {
	case "default":
		e.Exports = append(e.Exports, "default")
	case "const", "let", "var", "function", "class", "enum", "interface", "type":
		c.skipSpace()
		if c.peek() == '*' { // generator
			c.advance()
			c.skipSpace()
		}
		if name := c.nextIdentHere(); name != "" {
			e.Exports = append(e.Exports, name)
		}
	case "async", "abstract", "declare":
		c.skipSpace()
		e.scanExportDeclaration(c)
	}
}

func (e *Extraction) scanRequire(c *cursor) {
	c.skipSpace()
	if c.peek() != '(' {
		return
	}
	c.advance()
	c.skipSpace()
	if spec, ok := c.readString(); ok {
		e.Specifiers = append(e.Specifiers, spec)
	}
}

// stripComments blanks line and block comments with spaces, leaving string
// and template-literal contents untouched so that comment markers inside
// strings do not start a comment and specifiers survive. Newlines are kept
// so offsets stay line-accurate. Expressions nested in template ${} are
// treated as literal text, an accepted approximation.
func stripComments(src string) string {
	out := []byte(src)
	i, n := 0, len(src)
	for i < n {
		switch src[i] {
		case '/':
			if i+1 < n && src[i+1] == '/' {
				for i < n && src[i] != '\n' {
					out[i] = ' '
					i++
				}
				continue
			}
			if i+1 < n && src[i+1] == '*' {
				out[i], out[i+1] = ' ', ' '
				i += 2
				for i < n {
					if src[i] == '*' && i+1 < n && src[i+1] == '/' {
						out[i], out[i+1] = ' ', ' '
						i += 2
						break
					}
					if src[i] != '\n' {
						out[i] = ' '
					}
					i++
				}
				continue
			}
			i++
		case '\'', '"':
			// Plain strings cannot span lines; stopping at a newline keeps an
			// unterminated quote (e.g. inside a regex literal) from swallowing
			// the rest of the file.
			quote := src[i]
			i++
			for i < n && src[i] != quote && src[i] != '\n' {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i < n && src[i] == quote {
				i++
			}
		case '`':
			i++
			for i < n && src[i] != '`' {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
		default:
			i++
		}
	}
	return string(out)
}

// cursor is a minimal forward-only scanner over comment-stripped source.
type cursor struct {
	src string
	pos int
}

func (c *cursor) done() bool {
	return c.pos >= len(c.src)
}

func (c *cursor) peek() byte {
	if c.done() {
		return 0
	}
	return c.src[c.pos]
}

func (c *cursor) advance() {
	if !c.done() {
		c.pos++
	}
}

func (c *cursor) skipSpace() {
	for !c.done() && isSpace(c.src[c.pos]) {
		c.pos++
	}
}

// nextIdent scans forward to the next identifier anywhere in the source,
// skipping string literals so keywords inside strings are never matched.
func (c *cursor) nextIdent() string {
	for !c.done() {
		ch := c.src[c.pos]
		switch {
		case ch == '\'' || ch == '"' || ch == '`':
			c.readString()
		case isIdentStart(ch):
			return c.readIdent()
		default:
			c.pos++
		}
	}
	return ""
}

// nextIdentHere reads an identifier at the current position (after optional
// whitespace), or returns "" without consuming anything else.
func (c *cursor) nextIdentHere() string {
	c.skipSpace()
	if c.done() || !isIdentStart(c.src[c.pos]) {
		return ""
	}
	return c.readIdent()
}

// hasIdentHere reports whether the next identifier equals word, without
// consuming it.
func (c *cursor) hasIdentHere(word string) bool {
	saved := c.pos
	got := c.nextIdentHere()
	c.pos = saved
	return got == word
}

func (c *cursor) readIdent() string {
	start := c.pos
	for !c.done() && isIdentPart(c.src[c.pos]) {
		c.pos++
	}
	return c.src[start:c.pos]
}

// readString reads a quoted string literal at the current position and
// returns its contents. Template literals are accepted; escaped quotes are
// honored.
func (c *cursor) readString() (string, bool) {
	if c.done() {
		return "", false
	}
	quote := c.src[c.pos]
	if quote != '\'' && quote != '"' && quote != '`' {
		return "", false
	}
	c.pos++
	start := c.pos
	for !c.done() && c.src[c.pos] != quote {
		if c.src[c.pos] == '\\' {
			c.pos++
		}
		c.pos++
	}
	if c.done() {
		return "", false
	}
	lit := c.src[start:c.pos]
	c.pos++
	return lit, true
}

// readFromClause scans the remainder of the current statement for
// "from '<spec>'". It stops at a semicolon or at a newline that is followed
// by a statement-looking line, so a binding list may span lines.
func (c *cursor) readFromClause() (string, bool) {
	for !c.done() {
		ch := c.src[c.pos]
		switch {
		case ch == ';':
			return "", false
		case ch == '\'' || ch == '"' || ch == '`':
			c.readString()
		case isIdentStart(ch):
			word := c.readIdent()
			if word == "from" {
				c.skipSpace()
				return c.readString()
			}
			// A new import/export statement means the clause never came.
			if word == "import" || word == "export" || word == "const" ||
				word == "let" || word == "var" || word == "function" || word == "class" {
				c.pos -= len(word)
				return "", false
			}
		default:
			c.pos++
		}
	}
	return "", false
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || ch == '$' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || (ch >= '0' && ch <= '9')
}
