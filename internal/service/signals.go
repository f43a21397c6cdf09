package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/unclebandit/campaign-portal/internal/model"
)

// Touchpoint kinds a hook can be built on.
const (
	SignalExplicit   = "explicit"
	SignalConference = "conference"
	SignalCommunity  = "community"
	SignalLocation   = "location"
	SignalJargon     = "jargon"
)

// Signal is a shared touchpoint found in a brief. Text is the phrase a
// synthesized hook opens with.
type Signal struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

var (
	conferencePattern = regexp.MustCompile(`\b([A-Z][\w&'-]*(?:\s+[A-Z0-9][\w&'-]*){0,4}\s+(?:Conference|Summit|Expo|Convention|Trade Show|Annual))\b`)
	attendingPattern  = regexp.MustCompile(`(?i:attending|exhibiting at|exhibit at|booth at)\s+([A-Z][\w&'-]+(?:\s+[A-Z0-9][\w&'-]*){0,4})`)
	communityPattern  = regexp.MustCompile(`(?i:part of|member of|members of|active in)\s+(?:the\s+)?([A-Z][\w&'-]*(?:\s+[A-Z][\w&'-]*){0,3})\s+(?i:community|group|association|network|forum)`)
	locationPattern   = regexp.MustCompile(`(?i:based in|located in|headquartered in|in the|around the|across the)\s+([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?)(?:\s+(?i:area|region|metro))?`)
	jargonPattern     = regexp.MustCompile(`\b([A-Z]{2,6}\s+(?:compliance|certification|audits?|regulations?|requirements|standards))\b`)
)

// DetectSignal looks for a touchpoint, preferring an explicit one on the
// brief over anything found in its text.
func DetectSignal(b model.Brief, text string) (Signal, bool) {
	if s := strings.TrimSpace(b.HookSignal); s != "" {
		return Signal{Kind: SignalExplicit, Text: s}, true
	}
	if m := conferencePattern.FindStringSubmatch(text); m != nil {
		return Signal{Kind: SignalConference, Text: m[1]}, true
	}
	if m := attendingPattern.FindStringSubmatch(text); m != nil {
		return Signal{Kind: SignalConference, Text: m[1]}, true
	}
	if m := communityPattern.FindStringSubmatch(text); m != nil {
		return Signal{Kind: SignalCommunity, Text: m[1] + " community"}, true
	}
	if m := locationPattern.FindStringSubmatch(text); m != nil {
		return Signal{Kind: SignalLocation, Text: m[1] + "-area"}, true
	}
	if m := jargonPattern.FindStringSubmatch(text); m != nil {
		return Signal{Kind: SignalJargon, Text: m[1]}, true
	}
	return Signal{}, false
}

// SynthesizeHook writes a one-sentence hook that opens with the signal.
func SynthesizeHook(sig Signal, offerHeadline string) string {
	offer := strings.TrimSpace(offerHeadline)
	if offer == "" {
		offer = "a short resource"
	}
	switch sig.Kind {
	case SignalLocation:
		return fmt.Sprintf("%s leaders keep telling us the same thing, so we put together %s for teams like yours.", sig.Text, offer)
	case SignalConference:
		return fmt.Sprintf("%s is coming up, and we put together %s for teams heading there.", sig.Text, offer)
	case SignalCommunity:
		return fmt.Sprintf("%s members keep asking us about this, so we put together %s.", sig.Text, offer)
	case SignalJargon:
		return fmt.Sprintf("%s keeps coming up with teams like yours, so we put together %s.", sig.Text, offer)
	}
	return fmt.Sprintf("%s - we put together %s for teams like yours.", sig.Text, offer)
}
