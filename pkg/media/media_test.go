package media_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/thoughtnet/thoughtnet-go/pkg/media"
)

type fakeUploader struct {
	key         string
	contentType string
	body        string
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType string, size int64, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.key = key
	f.contentType = contentType
	f.body = string(data)
	return "https://cdn.example.com/" + key, nil
}

func TestPutBuildsKeyAndReturnsURL(t *testing.T) {
	up := &fakeUploader{}
	store := media.NewStore(up, 0)

	url, err := store.Put(context.Background(), media.KindAvatar, "u1", "me.png", "image/png", 4, strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !strings.HasPrefix(up.key, "avatars/u1/") || !strings.HasSuffix(up.key, ".png") {
		t.Errorf("key = %q, want avatars/u1/<random>.png", up.key)
	}
	if url != "https://cdn.example.com/"+up.key {
		t.Errorf("url = %q", url)
	}
	if up.body != "data" {
		t.Errorf("uploaded body = %q", up.body)
	}
}

func TestPutRejectsWrongType(t *testing.T) {
	store := media.NewStore(&fakeUploader{}, 0)

	_, err := store.Put(context.Background(), media.KindAvatar, "u1", "clip.mp3", "audio/mpeg", 10, strings.NewReader("x"))
	if !errors.Is(err, media.ErrUnsupportedType) {
		t.Errorf("err = %v, want ErrUnsupportedType", err)
	}

	// The same type is fine for chat audio.
	if _, err := store.Put(context.Background(), media.KindChatAudio, "u1", "clip.mp3", "audio/mpeg", 10, strings.NewReader("x")); err != nil {
		t.Errorf("chat audio rejected: %v", err)
	}
}

func TestPutRejectsOversize(t *testing.T) {
	store := media.NewStore(&fakeUploader{}, 8)

	_, err := store.Put(context.Background(), media.KindAvatar, "u1", "big.png", "image/png", 9, strings.NewReader("too big!!"))
	if !errors.Is(err, media.ErrTooLarge) {
		t.Errorf("err = %v, want ErrTooLarge", err)
	}
}

func TestObjectKeysAreUnique(t *testing.T) {
	a := media.ObjectKey(media.KindThoughtMedia, "u1", "pic.jpg")
	b := media.ObjectKey(media.KindThoughtMedia, "u1", "pic.jpg")
	if a == b {
		t.Error("two uploads of the same filename collide")
	}
}
