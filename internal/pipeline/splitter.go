package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/alnah/go-docpipe/internal/tokenize"
)

// DefaultMaxChunkTokens is the chunk budget used when none is configured.
// It leaves room for the instruction and the answer in an 8K context.
const DefaultMaxChunkTokens = 3000

const (
	paragraphSep = "\n\n"
	wordSep      = " "

	// sentenceEnds terminate a sentence when followed by whitespace.
	sentenceEnds = ".!?"
)

// blankLine matches paragraph breaks, tolerating trailing spaces and CRLF.
var blankLine = regexp.MustCompile(`\r?\n[ \t]*\r?\n`)

// Chunk is one budget-sized slice of a document.
type Chunk struct {
	Index   int    // 0-based position in the document
	Content string // trimmed text, never empty
	Tokens  int    // token count as measured by the splitter's tokenizer
}

// Splitter cuts text into chunks that each fit a token budget.
// It prefers paragraph breaks, then sentence ends, then whitespace, and only
// cuts inside a word when the word alone exceeds the budget.
// A Splitter is safe for concurrent use if its Tokenizer is.
type Splitter struct {
	tok tokenize.Tokenizer
}

// NewSplitter returns a Splitter measuring with tok.
// A nil tok uses the characters-per-token approximation.
func NewSplitter(tok tokenize.Tokenizer) *Splitter {
	if tok == nil {
		tok = tokenize.NewChars(tokenize.DefaultCharsPerToken)
	}
	return &Splitter{tok: tok}
}

// unit is an indivisible piece of text that fits the budget on its own.
// sep is placed before it when it joins the previous unit in a chunk.
type unit struct {
	sep  string
	text string
}

// level is the boundary granularity tried when a piece is too large.
type level int

const (
	levelSentence level = iota
	levelWord
	levelRune
)

// Split partitions text into ordered chunks of at most maxTokens tokens.
// Empty or whitespace-only text yields no chunks.
func (s *Splitter) Split(text string, maxTokens int) ([]Chunk, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens %d: %w", maxTokens, ErrInvalidBudget)
	}
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	b := budget{tok: s.tok, max: maxTokens}
	var units []unit
	for _, para := range splitParagraphs(text) {
		pieces := b.fit(para, levelSentence)
		pieces[0].sep = paragraphSep
		units = append(units, pieces...)
	}
	return b.pack(units), nil
}

// budget measures pieces against one token limit.
type budget struct {
	tok tokenize.Tokenizer
	max int
}

func (b budget) fits(text string) bool {
	return b.tok.Count(text) <= b.max
}

// fit breaks text into units that each fit the budget, descending one
// boundary level at a time. Units after the first are joined with a space,
// except pieces of a cut word, which are joined with nothing.
func (b budget) fit(text string, lvl level) []unit {
	if b.fits(text) {
		return []unit{{sep: wordSep, text: text}}
	}

	var parts []string
	switch lvl {
	case levelSentence:
		parts = splitSentences(text)
	case levelWord:
		parts = strings.Fields(text)
	default:
		return b.cutWord(text)
	}
	if len(parts) <= 1 {
		return b.fit(text, lvl+1)
	}

	var units []unit
	for _, part := range parts {
		units = append(units, b.fit(part, lvl+1)...)
	}
	return units
}

// cutWord splits a word into the longest rune prefixes that fit.
// A rune that alone exceeds the budget becomes its own piece.
func (b budget) cutWord(word string) []unit {
	rest := []rune(word)
	units := make([]unit, 0, 2)
	for len(rest) > 0 {
		n := b.longestPrefix(rest)
		units = append(units, unit{text: string(rest[:n])})
		rest = rest[n:]
	}
	units[0].sep = wordSep
	return units
}

// longestPrefix returns the largest n >= 1 such that runes[:n] fits.
func (b budget) longestPrefix(runes []rune) int {
	lo, hi := 1, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if b.fits(string(runes[:mid])) {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return lo
}

// pack merges consecutive units into chunks, taking as many units per chunk
// as fit. Every candidate is measured as a whole, so tokenizers whose counts
// are not additive (BPE merges across a boundary) still respect the budget.
func (b budget) pack(units []unit) []Chunk {
	var chunks []Chunk
	for i := 0; i < len(units); {
		n := b.fitCount(units[i:])
		text := joinUnits(units[i : i+n])
		chunks = append(chunks, Chunk{Index: len(chunks), Content: text, Tokens: b.tok.Count(text)})
		i += n
	}
	return chunks
}

// fitCount returns how many leading units fit in one chunk, at least one.
// The bound is found by doubling and then bisecting, so a chunk of k units
// costs O(log k) measurements instead of one per unit.
func (b budget) fitCount(units []unit) int {
	lo, hi := 1, 2
	for hi <= len(units) && b.fits(joinUnits(units[:hi])) {
		lo, hi = hi, hi*2
	}
	hi = min(hi, len(units)+1)
	// units[:lo] fits; units[:hi] does not, or runs past the end.
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		if b.fits(joinUnits(units[:mid])) {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo
}

// joinUnits renders units as chunk text. The first unit's separator is dropped.
func joinUnits(units []unit) string {
	var sb strings.Builder
	for i, u := range units {
		if i > 0 {
			sb.WriteString(u.sep)
		}
		sb.WriteString(u.text)
	}
	return sb.String()
}

// splitParagraphs returns the non-blank paragraphs of text, trimmed.
func splitParagraphs(text string) []string {
	var paras []string
	for _, p := range blankLine.Split(text, -1) {
		if p = strings.TrimSpace(p); p != "" {
			paras = append(paras, p)
		}
	}
	return paras
}

// splitSentences cuts text after each run of sentence-ending punctuation
// followed by whitespace or the end of text.
func splitSentences(text string) []string {
	var (
		sentences []string
		start     int
	)
	for i, r := range text {
		if !strings.ContainsRune(sentenceEnds, r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		if end < len(text) {
			if next, _ := utf8.DecodeRuneInString(text[end:]); !unicode.IsSpace(next) {
				continue
			}
		}
		if s := strings.TrimSpace(text[start:end]); s != "" {
			sentences = append(sentences, s)
		}
		start = end
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}
