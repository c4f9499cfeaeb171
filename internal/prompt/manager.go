package prompt

import (
	"fmt"
	"sort"
	"strings"

	"bizlens/internal/domain"
	"bizlens/internal/port"
)

// Unit is the manager's view of one content unit: text, an image, or both.
type Unit struct {
	Number         int
	Text           string
	ImageBase64    string
	ImageMediaType string
}

// BuildInput carries everything the manager needs for one prompt.
type BuildInput struct {
	Template        string
	SourceType      domain.SourceType
	EntityType      string
	Context         map[string]string
	Units           []Unit
	PreviousContext string
	// FailureNote augments the prompt after a malformed response, telling
	// the model what was wrong with its previous attempt.
	FailureNote string
}

// Prompt is a fully built LLM request: system instructions, user content,
// and any image attachments.
type Prompt struct {
	System string
	User   string
	Images []port.ImageAttachment
}

// Manager builds source-aware prompts. It is a pure function of its input:
// no network, no storage, no clock.
type Manager struct{}

// NewManager creates a prompt Manager.
func NewManager() *Manager {
	return &Manager{}
}

// Build assembles the prompt for one batch of content units.
func (m *Manager) Build(in BuildInput) Prompt {
	var sb strings.Builder

	if len(in.Context) > 0 {
		sb.WriteString("Source context:\n")
		keys := make([]string, 0, len(in.Context))
		for k := range in.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&sb, "- %s: %s\n", k, in.Context[k])
		}
		sb.WriteString("\n")
	}

	if in.SourceType == domain.SourceTypeConnector && in.EntityType != "" {
		fmt.Fprintf(&sb, "The records below are %q entities from an external business platform.\n\n", in.EntityType)
	}

	if in.PreviousContext != "" {
		fmt.Fprintf(&sb, "Content continues from earlier material. Immediately preceding context:\n%s\n\n", in.PreviousContext)
	}

	var images []port.ImageAttachment
	for _, u := range in.Units {
		if u.ImageBase64 != "" {
			images = append(images, port.ImageAttachment{
				Base64:    u.ImageBase64,
				MediaType: u.ImageMediaType,
			})
		}
		if u.Text != "" {
			fmt.Fprintf(&sb, "--- unit %d ---\n%s\n", u.Number, u.Text)
		} else {
			fmt.Fprintf(&sb, "--- unit %d: see attached image ---\n", u.Number)
		}
	}

	if in.FailureNote != "" {
		fmt.Fprintf(&sb, "\nIMPORTANT: your previous response was rejected: %s. Return ONLY the JSON object described in the instructions.\n", in.FailureNote)
	}

	return Prompt{
		System: in.Template + "\n\n" + ResponseSchemaDirective,
		User:   sb.String(),
		Images: images,
	}
}
