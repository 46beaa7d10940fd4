// Package rag composes retrieval with prompt assembly and generation.
//
// The query path has two branches, decided once by the classifier: a
// conversational message (greeting, thanks, small talk) is answered from
// a lightweight persona prompt without touching the index; a substantive
// question retrieves top-k chunks and grounds the model on them with
// source attribution.
package rag

import (
	"regexp"
	"strings"
)

// Intent is the classifier's verdict, produced once per question and
// threaded through the engine instead of being re-derived.
type Intent int

const (
	// IntentConversational needs no document retrieval.
	IntentConversational Intent = iota

	// IntentSubstantive requires retrieval-grounded generation.
	IntentSubstantive
)

func (i Intent) String() string {
	if i == IntentConversational {
		return "conversational"
	}
	return "substantive"
}

// conversationalPatterns match greetings, thanks, farewells,
// self-introduction requests and short acknowledgements, anchored at the
// start of the lowercased, trimmed question.
var conversationalPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(salut|bonjour|bonsoir|hello|hi|hey|coucou)`),
	regexp.MustCompile(`^(ça va|comment vas|comment tu vas|tu vas bien|comment allez)`),
	regexp.MustCompile(`^(merci|thanks|thank you)`),
	regexp.MustCompile(`^(au revoir|bye|à bientôt|à plus)`),
	regexp.MustCompile(`^(qui es[ -]tu|tu es qui|c'est quoi|présente[ -]toi)`),
	regexp.MustCompile(`^(ok|d'accord|compris|super|parfait|génial|cool)$`),
	regexp.MustCompile(`^(oui|non|ouais|nope)$`),
}

// domainKeywords mark a short question as substantive despite its
// length. Lowercase substring match.
var domainKeywords = []string{
	"impôt", "taxe", "tva", "is", "ir", "fiscal",
	"taux", "article", "cgi", "déclar", "exonér",
	"société", "revenu", "bénéfice", "auto-entrepreneur",
	"travail", "contrat", "licenciement", "congé", "salaire", "cdt",
}

// shortQuestionThreshold is the rune length under which a question
// without domain keywords is treated as conversational. Known heuristic
// limitation: very short substantive questions ("Taux TVA?") fit under
// it only because "taux"/"tva" are keywords.
const shortQuestionThreshold = 15

// Classify decides whether a question is conversational or substantive.
// Best-effort triage, not a security boundary.
func Classify(question string) Intent {
	q := strings.ToLower(strings.TrimSpace(question))

	for _, pattern := range conversationalPatterns {
		if pattern.MatchString(q) {
			return IntentConversational
		}
	}

	if len([]rune(q)) < shortQuestionThreshold && !containsDomainKeyword(q) {
		return IntentConversational
	}

	return IntentSubstantive
}

func containsDomainKeyword(q string) bool {
	for _, kw := range domainKeywords {
		if strings.Contains(q, kw) {
			return true
		}
	}
	return false
}
