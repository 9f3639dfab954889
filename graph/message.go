package graph

// Role identifies the sender of a Message. The standard variants cover
// typical chat-style workflows; Custom is an escape hatch for
// application-specific roles.
type Role struct {
	name string
}

var (
	// RoleUser marks a message originating from the end user.
	RoleUser = Role{"user"}
	// RoleAssistant marks a message produced by the workflow itself.
	RoleAssistant = Role{"assistant"}
	// RoleSystem marks a system prompt or instruction message.
	RoleSystem = Role{"system"}
	// RoleTool marks a tool/function call result message.
	RoleTool = Role{"tool"}
)

// CustomRole returns a Role for an application-defined sender, e.g. a
// named sub-agent or pipeline stage.
func CustomRole(name string) Role { return Role{name} }

// String returns the role's string form; standard roles return their
// fixed lowercase name, custom roles return the name verbatim.
func (r Role) String() string { return r.name }

// ParseRole decodes a role from its string form, recognizing the four
// standard variants and falling back to CustomRole otherwise.
func ParseRole(s string) Role {
	switch s {
	case "user":
		return RoleUser
	case "assistant":
		return RoleAssistant
	case "system":
		return RoleSystem
	case "tool":
		return RoleTool
	default:
		return CustomRole(s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) { return []byte(r.name), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	*r = ParseRole(string(text))
	return nil
}

// Message is a single entry in the Messages channel.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewMessage builds a Message from a typed Role and content string.
func NewMessage(role Role, content string) Message {
	return Message{Role: role.String(), Content: content}
}

// RoleType parses the message's stored role string back into a Role.
func (m Message) RoleType() Role { return ParseRole(m.Role) }

// IsRole reports whether the message's role matches r.
func (m Message) IsRole(r Role) bool { return m.Role == r.String() }

// clone returns a deep copy of the message. Message has no reference
// fields, so this is a value copy, kept as a named method so call sites
// that deep-copy a slice of messages read the same way regardless of
// whether Message grows reference fields later.
func (m Message) clone() Message { return m }
