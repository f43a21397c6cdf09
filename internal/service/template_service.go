// internal/service/template_service.go
package service

import (
	"regexp"
	"strings"
)

// RenderTemplate fills {key} slots from data. Merge tags the sequencer fills
// at send time ({{first_name}}, %signature%) are left alone.
func RenderTemplate(template string, data map[string]string) string {
	return slotPattern.ReplaceAllStringFunc(template, func(slot string) string {
		if strings.HasPrefix(slot, "{{") {
			return slot
		}
		if v, ok := data[slot[1:len(slot)-1]]; ok {
			return v
		}
		return slot
	})
}

var slotPattern = regexp.MustCompile(`\{\{[^}]*\}\}|\{[a-z_]+\}`)

// Fallback copy used when the model returns no usable email for a step.
var fallbackEmails = [3]struct{ Purpose, Subject, Body string }{
	{
		Purpose: "initial",
		Subject: "{offer}",
		Body: "Hi {{first_name}},\n\n{hook}\n\n" +
			"We put together {offer} for teams like {{company_name}}:\n{value_bullets}\n\n" +
			"Worth a quick look?\n\n%signature%",
	},
	{
		Purpose: "asset_follow_up",
		Subject: "Re: {offer}",
		Body: "Hi {{first_name}},\n\n{hook}\n\n" +
			"Following up on my last note. Here is the {offer} I mentioned: {asset}\n\n" +
			"When would be a good time for you to take a look?\n\n%signature%",
	},
	{
		Purpose: "referral_ask",
		Subject: "Can you help?",
		Body: "Hi {{first_name}},\n\n{hook}\n\n" +
			"If you're not the right person to connect with in regards to {topic}, " +
			"I'd really appreciate it if you could point me in the right direction.\n\n" +
			"Who on your team would you recommend I reach out to?\n\nWarm regards,\n%signature%",
	},
}

// EmailPurposes names each step of the sequence.
var EmailPurposes = [3]string{fallbackEmails[0].Purpose, fallbackEmails[1].Purpose, fallbackEmails[2].Purpose}
