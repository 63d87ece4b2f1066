// Package keyword classifies an inbound SMS body against the opt-in/
// opt-out/conversational keyword protocol. The router is a pure function
// of its input plus an injected lookup callback; it performs no I/O of
// its own.
package keyword

import (
	"context"
	"strings"

	"github.com/organizer/sanctuary/internal/models"
)

// IntentKind tags the variant produced by Classify.
type IntentKind string

const (
	IntentOptIn        IntentKind = "opt_in"
	IntentOptOut       IntentKind = "opt_out"
	IntentConversational IntentKind = "conversational"
)

// Intent is the tagged-variant result of classifying an inbound body.
// Only the field matching Kind is meaningful: Keyword for IntentOptIn,
// Body for IntentConversational.
type Intent struct {
	Kind    IntentKind
	Keyword *models.SignupKeyword
	Body    string
}

// optOutTokens always win over a keyword match, even if an admin creates
// a keyword literally named STOP.
var optOutTokens = map[string]bool{
	"STOP":        true,
	"UNSUBSCRIBE": true,
}

// Lookup resolves a normalized (trimmed, uppercased) keyword to an active
// SignupKeyword, or nil if none matches.
type Lookup func(ctx context.Context, normalized string) (*models.SignupKeyword, error)

// Classify checks opt-out tokens first, then an active keyword match,
// falling back to a conversational intent. The raw body (not the
// normalized form) is preserved in Intent.Body for conversational intents.
func Classify(ctx context.Context, body string, lookup Lookup) (Intent, error) {
	normalized := strings.ToUpper(strings.TrimSpace(body))

	if optOutTokens[normalized] {
		return Intent{Kind: IntentOptOut}, nil
	}

	kw, err := lookup(ctx, normalized)
	if err != nil {
		return Intent{}, err
	}
	if kw != nil && kw.IsActive {
		return Intent{Kind: IntentOptIn, Keyword: kw}, nil
	}

	return Intent{Kind: IntentConversational, Body: body}, nil
}
