// Package action defines the file actions a user can run on a document and
// builds the system instruction sent with every chunk of it.
package action

import (
	"fmt"
	"strings"

	"github.com/alnah/go-docpipe/internal/lang"
)

// Action name constants.
// Use these instead of string literals for compile-time safety.
const (
	FixGrammar = "fix-grammar"
	Translate  = "translate"
	Summarize  = "summarize"
	Edit       = "edit"
)

// ---------------------------------------------------------------------------
// Name type - represents a validated action name
// ---------------------------------------------------------------------------

// Name represents a validated action name.
// Zero value is invalid; use ParseName or the pre-parsed values.
type Name struct {
	name string
}

// Pre-parsed action names for use in code.
var (
	FixGrammarName = Name{name: FixGrammar}
	TranslateName  = Name{name: Translate}
	SummarizeName  = Name{name: Summarize}
	EditName       = Name{name: Edit}
)

// actionOrder is the canonical order for Names(), CLI help and error messages.
var actionOrder = []string{FixGrammar, Translate, Summarize, Edit}

// prompts maps action names to their base instructions.
// Prompts are versioned with the binary; update requires rebuild.
var prompts = map[string]string{
	FixGrammar: fixGrammarPrompt,
	Translate:  translatePrompt,
	Summarize:  summarizePrompt,
	Edit:       editPrompt,
}

// ParseName validates and parses an action name.
func ParseName(s string) (Name, error) {
	if s == "" {
		return Name{}, fmt.Errorf("action cannot be empty (use %s): %w", strings.Join(actionOrder, ", "), ErrUnknown)
	}
	if _, ok := prompts[s]; !ok {
		return Name{}, fmt.Errorf("unknown action %q (use %s): %w", s, strings.Join(actionOrder, ", "), ErrUnknown)
	}
	return Name{name: s}, nil
}

// String returns the action name.
func (n Name) String() string {
	return n.name
}

// IsZero returns true if no action is set.
func (n Name) IsZero() bool {
	return n.name == ""
}

// Names returns the available action names in canonical order.
func Names() []string {
	result := make([]string, len(actionOrder))
	copy(result, actionOrder)
	return result
}

// Params carries the per-run inputs some actions need.
type Params struct {
	// Language is the target of translate, and the output language of the
	// other actions when set to something other than English.
	Language lang.Language
	// Instruction is the user's free-form request for edit.
	Instruction string
}

// Instruction builds the system instruction for the action.
// Every instruction tells the model it may receive one part of a longer
// document, since the pipeline sends chunks independently.
func (n Name) Instruction(p Params) (string, error) {
	base, ok := prompts[n.name]
	if !ok {
		return "", fmt.Errorf("action %q: %w", n.name, ErrUnknown)
	}

	var b strings.Builder
	switch n.name {
	case Translate:
		if p.Language.IsZero() {
			return "", ErrMissingLanguage
		}
		fmt.Fprintf(&b, base, p.Language.DisplayName())
	case Edit:
		instruction := strings.TrimSpace(p.Instruction)
		if instruction == "" {
			return "", ErrMissingInstruction
		}
		fmt.Fprintf(&b, base, instruction)
	default:
		b.WriteString(base)
		if !p.Language.IsZero() && !p.Language.IsEnglish() {
			fmt.Fprintf(&b, "\n- Respond in %s", p.Language.DisplayName())
		}
	}
	b.WriteString("\n\n")
	b.WriteString(partNotice)
	return b.String(), nil
}

// partNotice is appended to every instruction.
const partNotice = `The text may be one part of a longer document split for length.
Process only the text you receive. Do not add introductions, conclusions or
comments about the task. Return only the resulting text.`

const fixGrammarPrompt = `You are a meticulous copy editor.

Rules:
- Correct spelling, grammar, punctuation and agreement errors
- Keep the author's wording, tone and meaning
- Keep the original language of the text
- Keep markdown formatting, lists and line breaks as they are
- Do not rephrase sentences that are already correct`

const translatePrompt = `You are a professional translator.

Rules:
- Translate the text into %s
- Preserve meaning, tone and register
- Keep markdown formatting, lists and line breaks as they are
- Keep proper nouns, code and URLs untranslated
- Do not summarize or omit anything`

const summarizePrompt = `You summarize documents.

Rules:
- Write a concise summary in markdown bullet points
- Keep every key fact, figure, decision and conclusion
- Drop repetitions, examples and filler
- Do not add opinions, do not invent anything`

const editPrompt = `You edit documents following the user's request.

Request: %s

Rules:
- Apply the request to the whole text
- Keep everything the request does not ask to change
- Keep markdown formatting unless asked otherwise
- Do not invent content`
