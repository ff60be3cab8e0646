package llm

import (
	"context"

	"github.com/quentinlg/ollamadesk/internal/session"
)

// Client is the minimal subset of the model runtime used by the pipeline; it
// is easy to mock in tests. StreamChat invokes onFragment for every piece of
// streamed content in arrival order and returns once the runtime signals end
// of stream. ListModels returns the identifiers of installed models.
type Client interface {
	StreamChat(ctx context.Context, model string, history []session.Message, onFragment func(string)) error
	ListModels(ctx context.Context) ([]string, error)
}
