package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ericfisherdev/chatrelay/internal/domain/model"
	"github.com/ericfisherdev/chatrelay/internal/domain/port/driven"
)

var (
	// ErrNoCredential is returned by Ask when the service was built without
	// an upstream client because no API key was configured.
	ErrNoCredential = errors.New("no API credential configured")

	// ErrUpstream wraps any failure returned by the upstream completion API.
	ErrUpstream = errors.New("upstream completion failed")
)

// ChatService relays a single question to the upstream completer. The
// completer is fixed at construction and never replaced, so the service is
// safe for concurrent use without locking.
type ChatService struct {
	completer driven.Completer
	timeout   time.Duration
}

// NewChatService creates a ChatService. completer may be nil when no
// credential is available; Ask then fails fast with ErrNoCredential.
// A timeout of zero leaves the caller's context deadline untouched.
func NewChatService(completer driven.Completer, timeout time.Duration) *ChatService {
	return &ChatService{
		completer: completer,
		timeout:   timeout,
	}
}

// Ready reports whether an upstream completer is configured.
func (s *ChatService) Ready() bool {
	return s.completer != nil
}

// Ask forwards input to the upstream completer without modification and
// returns its reply as-is.
func (s *ChatService) Ask(ctx context.Context, input string) (model.Exchange, error) {
	if s.completer == nil {
		return model.Exchange{}, ErrNoCredential
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	answer, err := s.completer.Complete(ctx, input)
	if err != nil {
		return model.Exchange{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	return model.Exchange{Input: input, Answer: answer}, nil
}
