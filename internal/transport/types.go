package transport

import (
	"context"

	"tgfmt/pkg/tgfmt"
)

type ChatTarget struct {
	ChatID   int64
	ThreadID int // telegram forum topic thread id (0 if none)
}

type MessageRef struct {
	ChatID    int64
	ThreadID  int
	MessageID int
}

// IsZero reports whether ref points at no message.
func (r MessageRef) IsZero() bool { return r.ChatID == 0 && r.MessageID == 0 }

// Target returns the chat the referenced message lives in.
func (r MessageRef) Target() ChatTarget {
	return ChatTarget{ChatID: r.ChatID, ThreadID: r.ThreadID}
}

type SendOptions struct {
	DisablePreview bool
	Silent         bool
}

// Sender delivers formatted text to a chat platform.
//
// Long texts may be delivered as several messages; the returned ref points at
// the first one.
type Sender interface {
	SendFormatted(ctx context.Context, to ChatTarget, text tgfmt.Text, opt *SendOptions) (MessageRef, error)
	EditFormatted(ctx context.Context, ref MessageRef, text tgfmt.Text, opt *SendOptions) error
}
