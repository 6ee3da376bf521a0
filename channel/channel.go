// Package channel defines the messaging-platform boundary: posting composed
// messages, threaded replies, file uploads, reactions and user lookups.
package channel

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/korjavin/newsdigestbot/blocks"
)

// MessageID identifies a posted message. It embeds the posting time so
// reports can bucket by it: "<unix seconds>.<platform message id>".
type MessageID string

// NewMessageID formats a message id from the posting time and the
// platform's own message number.
func NewMessageID(postedAt time.Time, seq int64) MessageID {
	return MessageID(fmt.Sprintf("%d.%06d", postedAt.Unix(), seq))
}

// PostedAt returns the posting time embedded in the id.
func (id MessageID) PostedAt() (time.Time, bool) {
	sec, _, ok := strings.Cut(string(id), ".")
	if !ok {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(sec, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}, false
	}
	return time.Unix(n, 0).UTC(), true
}

// Seq returns the platform message number embedded in the id.
func (id MessageID) Seq() (int64, bool) {
	_, seq, ok := strings.Cut(string(id), ".")
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(seq, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (id MessageID) String() string { return string(id) }

type FileType string

const (
	FileImage    FileType = "image"
	FileAudio    FileType = "audio"
	FileDocument FileType = "document"
)

// File is an attachment upload.
type File struct {
	Name string
	Data []byte
	Type FileType
}

// Directory resolves user ids to display names.
type Directory interface {
	LookupUser(ctx context.Context, userID string) (string, error)
}

// Publisher is the messaging-platform client used by the core. A failed call
// means the side effect did not happen.
type Publisher interface {
	// PostMessage posts msg, as a reply to threadParent when it is non-empty.
	PostMessage(ctx context.Context, channelID string, msg blocks.Message, threadParent MessageID) (MessageID, error)
	// UploadFile uploads f, as a reply to threadParent when it is non-empty.
	UploadFile(ctx context.Context, channelID string, f File, threadParent MessageID) error
	AddReaction(ctx context.Context, channelID string, id MessageID, emoji string) error
	Directory
}
