// Package media uploads user files (avatars, post images, chat audio) to
// object storage and hands back public URLs. It sits outside the sync
// engine: plain request/response, no reconciliation.
package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"
)

// Errors reported by uploaders.
var (
	// ErrTooLarge is returned when the upload exceeds the store's size cap.
	ErrTooLarge = errors.New("media: file too large")

	// ErrUnsupportedType is returned for a content type outside the
	// allowlist for the target kind.
	ErrUnsupportedType = errors.New("media: unsupported content type")
)

// Kind is what the file is for; it picks the key prefix and the content
// type allowlist.
type Kind string

const (
	KindAvatar       Kind = "avatars"
	KindThoughtMedia Kind = "thought-media"
	KindChatAudio    Kind = "chat-audio"
	KindChatImage    Kind = "chat-images"
)

var allowedTypes = map[Kind][]string{
	KindAvatar:       {"image/jpeg", "image/png", "image/webp"},
	KindThoughtMedia: {"image/jpeg", "image/png", "image/webp", "image/gif"},
	KindChatAudio:    {"audio/webm", "audio/mpeg", "audio/mp4", "audio/ogg"},
	KindChatImage:    {"image/jpeg", "image/png", "image/webp"},
}

// Allowed reports whether contentType may be uploaded as kind.
func Allowed(kind Kind, contentType string) bool {
	for _, t := range allowedTypes[kind] {
		if strings.EqualFold(t, contentType) {
			return true
		}
	}
	return false
}

// ObjectKey builds the storage key for a new upload: kind prefix, owner,
// random name, original extension preserved.
func ObjectKey(kind Kind, ownerID, filename string) string {
	ext := path.Ext(filename)
	return fmt.Sprintf("%s/%s/%s%s", kind, ownerID, uuid.NewString(), ext)
}

// Uploader stores a blob and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, size int64, r io.Reader) (string, error)
}

// Store wraps an Uploader with the kind checks.
type Store struct {
	uploader Uploader
	maxSize  int64
}

// NewStore creates a Store. maxSize of 0 means no cap.
func NewStore(uploader Uploader, maxSize int64) *Store {
	return &Store{uploader: uploader, maxSize: maxSize}
}

// Put validates and uploads one file for ownerID, returning its public URL.
func (s *Store) Put(ctx context.Context, kind Kind, ownerID, filename, contentType string, size int64, r io.Reader) (string, error) {
	if !Allowed(kind, contentType) {
		return "", fmt.Errorf("%w: %s for %s", ErrUnsupportedType, contentType, kind)
	}
	if s.maxSize > 0 && size > s.maxSize {
		return "", ErrTooLarge
	}
	return s.uploader.Upload(ctx, ObjectKey(kind, ownerID, filename), contentType, size, r)
}
