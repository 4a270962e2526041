package driven

import "context"

// Completer defines the driven port for the upstream completion API.
// Implementations must send prompt exactly as given and return the model's
// textual reply without post-processing.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}
