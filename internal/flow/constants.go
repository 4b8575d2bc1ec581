package flow

// MaxProcessingDepth bounds the component-processing loop within one turn.
// Exceeding it means the transition graph cycled without waiting for input.
const MaxProcessingDepth = 10

// GreetingCommands are the text commands that force a full state reset and
// restart the login flow. This is the system's only cancellation primitive.
var GreetingCommands = map[string]struct{}{
	"menu": {}, "memu": {}, "hi": {}, "hie": {}, "cancel": {}, "home": {},
	"hy": {}, "reset": {}, "hello": {}, "x": {}, "c": {}, "no": {}, "n": {},
	"hey": {}, "y": {}, "yes": {}, "retry": {},
}

// IsGreeting reports whether a normalized (lowercased, trimmed) text body
// is a recognized greeting command.
func IsGreeting(text string) bool {
	_, ok := GreetingCommands[text]
	return ok
}
