package cvs

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ParseError names the file and byte offset at which RCS parsing
// failed, so a caller driving many files can report which one broke
// and where without aborting the whole run.
type ParseError struct {
	Path   string
	Offset int64
	Line   int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: offset %d (line %d): %v", e.Path, e.Offset, e.Line, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RCSParser parses RCS ,v file format.
type RCSParser struct {
	lexer *RCSLexer
	token Token
	path  string
}

// NewRCSParser creates a new RCS parser reading from r. path is used
// only to annotate parse errors.
func NewRCSParser(r io.Reader) *RCSParser {
	return NewRCSParserPath(r, "")
}

// NewRCSParserPath is like NewRCSParser but records path on any
// ParseError it returns.
func NewRCSParserPath(r io.Reader, path string) *RCSParser {
	lexer := NewRCSLexer(r)
	return &RCSParser{
		lexer: lexer,
		token: lexer.NextToken(),
		path:  path,
	}
}

func (p *RCSParser) advance() {
	p.token = p.lexer.NextToken()
}

func (p *RCSParser) errorf(format string, args ...interface{}) error {
	return &ParseError{
		Path:   p.path,
		Offset: p.token.Offset,
		Line:   p.token.Line,
		Err:    fmt.Errorf(format, args...),
	}
}

// parseRCSDate parses an RCS admin/delta date, accepting both the
// 4-digit-year form CVS has emitted since Y2K ("2024.03.05.10.00.00")
// and the legacy 2-digit-year form still found in older ,v files
// ("94.03.05.10.00.00", meaning 1994) per the historical CVS/RCS
// convention: a year < 100 means 1900+year.
func parseRCSDate(s string) (time.Time, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 6 {
		return time.Time{}, fmt.Errorf("malformed date %q: expected 6 dot-separated fields", s)
	}
	nums := make([]int, 6)
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return time.Time{}, fmt.Errorf("malformed date %q: %w", s, err)
		}
		nums[i] = n
	}
	year := nums[0]
	if year < 100 {
		year += 1900
	}
	return time.Date(year, time.Month(nums[1]), nums[2], nums[3], nums[4], nums[5], 0, time.UTC), nil
}

// Parse executes the main parsing logic: admin header, delta
// metadata, description, then per-revision log/text bodies.
func (p *RCSParser) Parse() (*RCSFile, error) {
	rcs := &RCSFile{
		Deltas:  make(map[string]*Delta),
		Symbols: make(map[string]string),
		Locks:   make(map[string]string),
	}

	if err := p.parseHeader(rcs); err != nil {
		return nil, err
	}
	if err := p.parseDeltas(rcs); err != nil {
		return nil, err
	}
	if err := p.parseDesc(rcs); err != nil {
		return nil, err
	}
	if err := p.parseDeltaTexts(rcs); err != nil {
		return nil, err
	}

	return rcs, nil
}

func (p *RCSParser) parseHeader(rcs *RCSFile) error {
	for p.token.Type != TokenEOF {
		if p.token.Type != TokenIdent {
			break
		}

		switch p.token.Str() {
		case "head":
			p.advance()
			if p.token.Type == TokenNumber {
				rcs.Head = p.token.Str()
				p.advance()
			}
			p.skipSemicolon()

		case "branch":
			p.advance()
			if p.token.Type == TokenNumber {
				rcs.Branch = p.token.Str()
				p.advance()
			}
			p.skipSemicolon()

		case "access":
			p.advance()
			for p.token.Type == TokenIdent {
				rcs.Access = append(rcs.Access, p.token.Str())
				p.advance()
			}
			p.skipSemicolon()

		case "symbols":
			p.advance()
			for p.token.Type == TokenIdent {
				sym := p.token.Str()
				p.advance()
				if p.token.Type == TokenColon {
					p.advance()
					if p.token.Type == TokenNumber {
						rcs.Symbols[sym] = p.token.Str()
						p.advance()
					}
				}
			}
			p.skipSemicolon()

		case "locks":
			p.advance()
			for p.token.Type == TokenIdent {
				lock := p.token.Str()
				p.advance()
				if p.token.Type == TokenColon {
					p.advance()
					if p.token.Type == TokenNumber {
						rcs.Locks[lock] = p.token.Str()
						p.advance()
					}
				}
			}
			p.skipSemicolon()

		case "strict":
			rcs.StrictLocks = true
			p.advance()
			p.skipSemicolon()

		case "comment":
			p.advance()
			if p.token.Type == TokenString {
				rcs.Comment = p.token.Str()
				p.advance()
			}
			p.skipSemicolon()

		case "expand":
			p.advance()
			if p.token.Type == TokenString {
				rcs.Expand = p.token.Str()
				p.advance()
			}
			p.skipSemicolon()

		default:
			// Unknown field - could be start of deltas or desc.
			// Don't consume the token, let the outer loop handle it.
			return nil
		}

		if p.token.Type == TokenNumber {
			break
		}
	}
	return nil
}

func (p *RCSParser) skipSemicolon() {
	if p.token.Type == TokenSemicolon {
		p.advance()
	}
}

func (p *RCSParser) parseDeltas(rcs *RCSFile) error {
	for p.token.Type != TokenEOF {
		if p.token.Type == TokenIdent && p.token.Str() == "desc" {
			break
		}
		if p.token.Type != TokenNumber {
			break
		}

		rev := p.token.Str()
		p.advance()
		delta := &Delta{Revision: rev}

		for p.token.Type != TokenEOF {
			if p.token.Type == TokenNumber {
				break
			}
			if p.token.Type == TokenIdent && p.token.Str() == "desc" {
				break
			}

			if p.token.Type == TokenIdent {
				switch p.token.Str() {
				case "date":
					p.advance()
					if p.token.Type == TokenNumber {
						d, err := parseRCSDate(p.token.Str())
						if err != nil {
							return p.errorf("revision %s: %w", rev, err)
						}
						delta.Date = d
						p.advance()
					}
					p.skipSemicolon()

				case "author":
					p.advance()
					if p.token.Type == TokenIdent {
						delta.Author = p.token.Str()
						p.advance()
					}
					p.skipSemicolon()

				case "state":
					p.advance()
					if p.token.Type == TokenIdent {
						delta.State = p.token.Str()
						p.advance()
					}
					p.skipSemicolon()

				case "branches":
					p.advance()
					for p.token.Type == TokenNumber {
						delta.Branches = append(delta.Branches, p.token.Str())
						p.advance()
					}
					p.skipSemicolon()

				case "next":
					p.advance()
					if p.token.Type == TokenNumber {
						delta.Next = p.token.Str()
						p.advance()
					}
					p.skipSemicolon()

				default:
					// Unknown field (e.g. a vendor-specific "commitid"): skip its value.
					p.advance()
					for p.token.Type != TokenEOF && p.token.Type != TokenSemicolon {
						p.advance()
					}
					p.skipSemicolon()
				}
			} else {
				p.advance()
			}
		}

		rcs.Deltas[rev] = delta
		rcs.DeltaOrder = append(rcs.DeltaOrder, rev)
	}
	return nil
}

func (p *RCSParser) parseDesc(rcs *RCSFile) error {
	if p.token.Type == TokenIdent && p.token.Str() == "desc" {
		p.advance()
		if p.token.Type == TokenString {
			rcs.Description = p.token.Str()
			p.advance()
		}
	}
	return nil
}

func (p *RCSParser) parseDeltaTexts(rcs *RCSFile) error {
	for p.token.Type != TokenEOF {
		if p.token.Type != TokenNumber {
			p.advance()
			continue
		}

		rev := p.token.Str()
		p.advance()

		delta := rcs.Deltas[rev]
		if delta == nil {
			delta = &Delta{Revision: rev}
			rcs.Deltas[rev] = delta
		}

		for p.token.Type != TokenEOF && p.token.Type != TokenNumber {
			if p.token.Type == TokenIdent {
				switch p.token.Str() {
				case "log":
					p.advance()
					if p.token.Type == TokenString {
						delta.Log = p.token.Str()
						p.advance()
					}

				case "text":
					p.advance()
					if p.token.Type == TokenString {
						delta.Text = p.token.Value
						p.advance()
					}

				default:
					p.advance()
				}
			} else {
				p.advance()
			}
		}
	}
	if rcs.Head != "" {
		if _, ok := rcs.Deltas[rcs.Head]; !ok {
			return p.errorf("head revision %s has no delta record", rcs.Head)
		}
	}
	return nil
}
